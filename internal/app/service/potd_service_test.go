package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func TestNormalizeDate(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2026, 3, 14, 23, 45, 0, 0, loc) // 18:45 UTC same day
	got := NormalizeDate(in)
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NormalizeDate(%v) = %v, want %v", in, got, want)
	}

	late := time.Date(2026, 3, 14, 2, 0, 0, 0, loc) // 21:00 UTC previous day
	if got := NormalizeDate(late); !got.Equal(time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("NormalizeDate did not convert to UTC before truncating: got %v", got)
	}
}

func TestDeriveStatus(t *testing.T) {
	today := mustDate(t, "2026-03-14")
	tests := []struct {
		name      string
		date      string
		published bool
		want      model.POTDStatus
	}{
		{"future unpublished", "2026-03-20", false, model.POTDScheduled},
		{"today unpublished", "2026-03-14", false, model.POTDToday},
		{"past unpublished", "2026-03-10", false, model.POTDMissed},
		{"published wins regardless of date", "2026-03-10", true, model.POTDPublished},
		{"today published", "2026-03-14", true, model.POTDPublished},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(mustDate(t, tt.date), today, tt.published); got != tt.want {
				t.Errorf("DeriveStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsLocked(t *testing.T) {
	today := mustDate(t, "2026-03-14")
	tests := []struct {
		name  string
		entry model.ScheduledPOTD
		want  bool
	}{
		{"stored flag", model.ScheduledPOTD{Locked: true, Date: mustDate(t, "2026-03-20")}, true},
		{"published and past", model.ScheduledPOTD{Published: true, Date: mustDate(t, "2026-03-10")}, true},
		{"published today is still editable via force-publish", model.ScheduledPOTD{Published: true, Date: today}, false},
		{"unpublished past", model.ScheduledPOTD{Date: mustDate(t, "2026-03-10")}, false},
		{"future", model.ScheduledPOTD{Date: mustDate(t, "2026-03-20")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLocked(&tt.entry, today); got != tt.want {
				t.Errorf("IsLocked() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakePOTDRepo struct {
	repository.POTDRepository
	created *model.ScheduledPOTD
	entries map[string]*model.ScheduledPOTD
}

func (f *fakePOTDRepo) Create(ctx context.Context, tx *sql.Tx, entry *model.ScheduledPOTD) error {
	f.created = entry
	return nil
}

func (f *fakePOTDRepo) GetByID(ctx context.Context, id string) (*model.ScheduledPOTD, error) {
	if e, ok := f.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakePOTDRepo) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	delete(f.entries, id)
	return nil
}

type fakeProblemRepo struct {
	repository.ProblemRepository
	problems map[string]*model.Problem
}

func (f *fakeProblemRepo) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	if p, ok := f.problems[id]; ok {
		return p, nil
	}
	return nil, common.ErrNotFound
}

func newTestPOTDService(potdRepo *fakePOTDRepo, problemRepo *fakeProblemRepo, today string) *POTDService {
	s := NewPOTDService(potdRepo, problemRepo)
	d, _ := time.Parse("2006-01-02", today)
	s.now = func() time.Time { return d.Add(9 * time.Hour) } // mid-morning UTC
	return s
}

func TestSchedulePastDateRejected(t *testing.T) {
	s := newTestPOTDService(&fakePOTDRepo{}, &fakeProblemRepo{}, "2026-03-14")

	_, err := s.Schedule(context.Background(), SchedulePOTDRequest{Date: "2026-03-10", ProblemID: "p1"})
	if !errors.Is(err, common.ErrBadRequest) {
		t.Errorf("scheduling a past date: got %v, want ErrBadRequest", err)
	}
}

func TestScheduleTodayPublishesImmediately(t *testing.T) {
	potdRepo := &fakePOTDRepo{}
	problemRepo := &fakeProblemRepo{problems: map[string]*model.Problem{"p1": {ID: "p1"}}}
	s := newTestPOTDService(potdRepo, problemRepo, "2026-03-14")

	entry, err := s.Schedule(context.Background(), SchedulePOTDRequest{Date: "2026-03-14", ProblemID: "p1"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !entry.Published {
		t.Error("entry scheduled for today should publish immediately")
	}
	if entry.Status != model.POTDPublished {
		t.Errorf("status = %v, want published", entry.Status)
	}
	if potdRepo.created == nil || !potdRepo.created.Published {
		t.Error("published flag not persisted")
	}
}

func TestScheduleFutureStaysUnpublished(t *testing.T) {
	potdRepo := &fakePOTDRepo{}
	problemRepo := &fakeProblemRepo{problems: map[string]*model.Problem{"p1": {ID: "p1"}}}
	s := newTestPOTDService(potdRepo, problemRepo, "2026-03-14")

	entry, err := s.Schedule(context.Background(), SchedulePOTDRequest{Date: "2026-03-20", ProblemID: "p1"})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if entry.Published {
		t.Error("future entry must not publish at scheduling time")
	}
	if entry.Status != model.POTDScheduled {
		t.Errorf("status = %v, want scheduled", entry.Status)
	}
}

func TestDeleteLockedEntryRejected(t *testing.T) {
	potdRepo := &fakePOTDRepo{entries: map[string]*model.ScheduledPOTD{
		"e1": {ID: "e1", Date: mustDate(t, "2026-03-01"), Published: true},
	}}
	s := newTestPOTDService(potdRepo, &fakeProblemRepo{}, "2026-03-14")

	err := s.Delete(context.Background(), "e1")
	if !errors.Is(err, common.ErrLocked) {
		t.Errorf("deleting a published past entry: got %v, want ErrLocked", err)
	}
	if _, ok := potdRepo.entries["e1"]; !ok {
		t.Error("locked entry was deleted")
	}
}

func TestForcePublishOnlyToday(t *testing.T) {
	potdRepo := &fakePOTDRepo{entries: map[string]*model.ScheduledPOTD{
		"future": {ID: "future", Date: mustDate(t, "2026-03-20")},
	}}
	s := newTestPOTDService(potdRepo, &fakeProblemRepo{}, "2026-03-14")

	_, err := s.ForcePublish(context.Background(), "future")
	if !errors.Is(err, common.ErrBadRequest) {
		t.Errorf("force-publishing a future entry: got %v, want ErrBadRequest", err)
	}
}
