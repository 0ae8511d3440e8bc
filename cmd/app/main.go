package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"detector/internal/pkg/artifact"
	"detector/internal/pkg/circuitbreaker"
	"detector/internal/pkg/config"
	"detector/internal/pkg/corpus"
	"detector/internal/pkg/curator"
	"detector/internal/pkg/logger"
	"detector/internal/pkg/normalizer"
	"detector/internal/pkg/notifier"
	"detector/internal/pkg/queue"
	"detector/internal/pkg/realtime"
	"detector/internal/pkg/rulefilter"
	"detector/internal/pkg/scraper"
	"detector/internal/pkg/store"
	"detector/internal/pkg/trainer"
	"detector/internal/pkg/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.InitLogger(cfg.LogLevel)
	defer logger.Log.Sync()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	db, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		logger.Log.Fatal("failed to connect to record store", zap.Error(err))
	}
	defer db.Close()
	records := store.New(db)

	norm, err := normalizer.New(cfg)
	if err != nil {
		logger.Log.Fatal("failed to build normalizer", zap.Error(err))
	}
	rules, err := rulefilter.New(cfg, records)
	if err != nil {
		logger.Log.Fatal("failed to build rule filter", zap.Error(err))
	}

	corpora := corpus.NewStore(client)
	artifacts := artifact.NewStore(client, cfg.Keys.ArtifactMsg)

	w := worker.New(
		cfg,
		client,
		queue.New(client, cfg.Keys.QueueMsg),
		records,
		rules,
		norm,
		artifacts,
		scraper.New(cfg, client, circuitbreaker.New("scraper", 5, 30*time.Second)),
		notifier.New(cfg, client, circuitbreaker.New("notifier", 3, time.Minute)),
		realtime.NewEmitter(client),
	)

	msgCurator := curator.New(cfg, corpora, norm, records)
	workCurator := curator.New(cfg, corpora, norm, records.WorkSource())
	violationCurator := curator.New(cfg, corpora, norm, records.ViolationSource())
	tr := trainer.New(cfg, corpora, artifacts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Expose prometheus metrics.
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.MetricsPort, nil); err != nil {
			logger.Log.Error("metrics listener stopped", zap.Error(err))
		}
	}()

	// Poll the detection queue until shut down.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.PollIntervalMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.RunCycle(ctx); err != nil {
					logger.Log.Error("detection cycle failed", zap.Error(err))
				}
			}
		}
	}()

	// Refresh the corpora and refit the model on a slow cadence.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.RetrainIntervalH) * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runMaintenance(ctx, cfg, msgCurator, workCurator, violationCurator, tr)
			}
		}
	}()

	logger.Log.Info("detector started",
		zap.String("environment", cfg.Environment),
		zap.String("metrics_port", cfg.MetricsPort))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigChan
	logger.Log.Info("received signal, shutting down", zap.String("signal", s.String()))
	cancel()

	// Let an in-flight cycle finish.
	time.Sleep(2 * time.Second)
	logger.Log.Info("detector shutdown complete")
}

// runMaintenance folds fresh records into every corpus, prunes campaign
// duplicates and refits the message model from the updated datasets.
func runMaintenance(ctx context.Context, cfg *config.Config, msgs, works, violations *curator.Curator, tr *trainer.Trainer) {
	updates := []struct {
		key string
		run func(context.Context, string) (int, error)
	}{
		{cfg.Keys.DatasetMsgPos, msgs.Update},
		{cfg.Keys.DatasetMsgNeg, msgs.UpdateNegatives},
		{cfg.Keys.DatasetPjtMlmPos, works.Update},
		{cfg.Keys.DatasetPjtMlmNeg, works.UpdateNegatives},
		{cfg.Keys.DatasetPjtVlPos, violations.Update},
		{cfg.Keys.DatasetPjtVlNeg, violations.UpdateNegatives},
	}
	for _, u := range updates {
		if _, err := u.run(ctx, u.key); err != nil {
			logger.Log.Error("corpus update failed",
				zap.String("key", u.key), zap.Error(err))
			continue
		}
		if _, err := msgs.PruneSelf(ctx, u.key); err != nil {
			logger.Log.Error("corpus prune failed",
				zap.String("key", u.key), zap.Error(err))
		}
	}

	if _, err := tr.Train(ctx, trainer.MessageDatasets(cfg.Keys)); err != nil {
		logger.Log.Error("retrain failed", zap.Error(err))
	}
}
