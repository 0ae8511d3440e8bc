// Package review is the operator feedback path: an admin confirms or
// overturns a verdict, the record is updated, and the board UI is told the
// effective spam status changed.
package review

import (
	"context"

	"go.uber.org/zap"

	"detector/internal/pkg/logger"
	"detector/internal/pkg/models"
	"detector/internal/pkg/realtime"
	"detector/internal/pkg/store"
)

// Records is the slice of the record store the review path needs.
type Records interface {
	VerdictExists(ctx context.Context, id int64) (bool, error)
	UpdateAdminFeedback(ctx context.Context, id int64, feedback int) error
	VerdictDetail(ctx context.Context, id int64) (*models.VerdictDetail, error)
	BoardParticipants(ctx context.Context, boardID int64) ([]int64, error)
}

type Reviewer struct {
	records Records
	emitter realtime.Emitter
}

func New(records Records, emitter realtime.Emitter) *Reviewer {
	return &Reviewer{records: records, emitter: emitter}
}

// ApplyAdminFeedback records the operator's review of one verdict and
// returns the updated denormalized detail. An unknown verdict id yields
// (nil, nil) so the caller can answer with an empty result instead of an
// error.
func (r *Reviewer) ApplyAdminFeedback(ctx context.Context, id int64, feedback int) (*models.VerdictDetail, error) {
	exists, err := r.records.VerdictExists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.Log.Warn("feedback on unknown verdict", zap.Int64("id", id))
		return nil, nil
	}

	if err := r.records.UpdateAdminFeedback(ctx, id, feedback); err != nil {
		return nil, err
	}

	detail, err := r.records.VerdictDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.ReceiveUserIDs, err = r.records.BoardParticipants(ctx, detail.BoardID)
	if err != nil {
		return nil, err
	}
	detail.Spam = store.SpamStatus(detail.FeedbackFromAdmin, detail.FeedbackFromUser, detail.Predict)

	if _, err := r.emitter.EmitSpamUpdate(ctx, realtime.SpamUpdate{
		BoardID:           detail.BoardID,
		MessageID:         detail.MessageID,
		FeedbackFromAdmin: detail.FeedbackFromAdmin,
		FeedbackFromUser:  detail.FeedbackFromUser,
		Predict:           detail.Predict,
	}); err != nil {
		logger.Log.Error("realtime emit failed after review",
			zap.Int64("id", id), zap.Error(err))
	}

	logger.Log.Info("applied admin feedback",
		zap.Int64("id", id),
		zap.Int("feedback", feedback),
		zap.Int("spam", detail.Spam))
	return detail, nil
}
