package rulefilter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"detector/internal/pkg/config"
	"detector/internal/pkg/models"
)

type fakeHistory struct {
	works []models.WorkHistory
	err   error
}

func (f *fakeHistory) WorksByUser(ctx context.Context, userID int64) ([]models.WorkHistory, error) {
	return f.works, f.err
}

func newTestFilter(t *testing.T, history HistoryLookup) *Filter {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	f, err := New(cfg, history)
	if err != nil {
		t.Fatalf("failed to build filter: %v", err)
	}
	return f
}

// Long enough to clear the length rule, no honorific, no whitelist words.
var longBody = strings.Repeat("在宅で高収入の副業を始めませんか。", 6)

func TestWhitelistedUserClearsProject(t *testing.T) {
	f := newTestFilter(t, &fakeHistory{})

	v, err := f.EvaluateProject(context.Background(), Item{
		Nickname:    "mk_order12345",
		Description: longBody,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || v.Reason != "whitelist_user" {
		t.Errorf("got %+v, want whitelist_user verdict", v)
	}
}

func TestExactWhitelistUser(t *testing.T) {
	f := newTestFilter(t, &fakeHistory{})

	v, err := f.EvaluateProject(context.Background(), Item{
		Nickname:    "webciel",
		Description: longBody,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || v.Predict != 0 {
		t.Errorf("got %+v, want not-spam verdict", v)
	}
}

func TestHeadWordClearsItem(t *testing.T) {
	f := newTestFilter(t, &fakeHistory{})

	v, err := f.EvaluateMessage(context.Background(), Item{
		Description: "よろしくお願いいたします。" + longBody,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || !strings.HasPrefix(v.Reason, "whitelist_keyword") {
		t.Errorf("got %+v, want whitelist_keyword verdict", v)
	}
}

func TestKeywordAnywhereClearsItem(t *testing.T) {
	f := newTestFilter(t, &fakeHistory{})

	v, err := f.EvaluateMessage(context.Background(), Item{
		Description: longBody + "BUYMAの出品代行です。",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || !strings.HasPrefix(v.Reason, "whitelist_keyword") {
		t.Errorf("got %+v, want whitelist_keyword verdict", v)
	}
}

func TestShortBodyClearsItem(t *testing.T) {
	f := newTestFilter(t, &fakeHistory{})

	v, err := f.EvaluateMessage(context.Background(), Item{Description: "短いメッセージ"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || v.Reason != "less_than_60" {
		t.Errorf("got %+v, want less_than_60 verdict", v)
	}
}

func TestHonorificWithCleanHistory(t *testing.T) {
	f := newTestFilter(t, &fakeHistory{works: []models.WorkHistory{{ID: 1}}})

	v, err := f.EvaluateMessage(context.Background(), Item{
		Description: "田中様 " + longBody,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v == nil || v.Reason != "honorific_suffix" {
		t.Errorf("got %+v, want honorific_suffix verdict", v)
	}
}

func TestHonorificWithoutHistoryDefers(t *testing.T) {
	f := newTestFilter(t, &fakeHistory{})

	v, err := f.EvaluateMessage(context.Background(), Item{
		Description: "田中様 " + longBody,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Errorf("got %+v, want nil (defer to classifier)", v)
	}
}

func TestHonorificWithViolationDefers(t *testing.T) {
	f := newTestFilter(t, &fakeHistory{works: []models.WorkHistory{
		{ID: 1},
		{ID: 2, ViolationStatus: 1},
	}})

	v, err := f.EvaluateMessage(context.Background(), Item{
		Description: "田中様 " + longBody,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Errorf("got %+v, want nil (defer to classifier)", v)
	}
}

func TestHonorificDeepInBodyDefers(t *testing.T) {
	f := newTestFilter(t, &fakeHistory{works: []models.WorkHistory{{ID: 1}}})

	v, err := f.EvaluateMessage(context.Background(), Item{
		Description: longBody + " 田中様",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Errorf("honorific outside the head window should not clear: %+v", v)
	}
}

func TestHistoryErrorPropagates(t *testing.T) {
	want := errors.New("db down")
	f := newTestFilter(t, &fakeHistory{err: want})

	_, err := f.EvaluateMessage(context.Background(), Item{
		Description: "田中様 " + longBody,
	})
	if !errors.Is(err, want) {
		t.Errorf("got %v, want wrapped %v", err, want)
	}
}

func TestPlainLongBodyDefers(t *testing.T) {
	f := newTestFilter(t, &fakeHistory{})

	v, err := f.EvaluateMessage(context.Background(), Item{Description: longBody})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != nil {
		t.Errorf("got %+v, want nil (defer to classifier)", v)
	}
}
