package service

import (
	"context"
	"errors"
	"log"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"

	"github.com/google/uuid"
)

type POTDService struct {
	potdRepo    repository.POTDRepository
	problemRepo repository.ProblemRepository
	now         func() time.Time // Injectable for tests
}

func NewPOTDService(potdRepo repository.POTDRepository, problemRepo repository.ProblemRepository) *POTDService {
	return &POTDService{potdRepo: potdRepo, problemRepo: problemRepo, now: time.Now}
}

// NormalizeDate truncates a timestamp to UTC midnight. All schedule dates
// are stored and compared in this form.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DeriveStatus maps (schedule date vs today, published flag) to the derived
// schedule status. It is never stored.
func DeriveStatus(date, today time.Time, published bool) model.POTDStatus {
	if published {
		return model.POTDPublished
	}
	switch {
	case date.After(today):
		return model.POTDScheduled
	case date.Equal(today):
		return model.POTDToday
	default:
		return model.POTDMissed
	}
}

// IsLocked reports whether a schedule entry can no longer be edited or
// deleted: once it has been published and its date has passed.
func IsLocked(entry *model.ScheduledPOTD, today time.Time) bool {
	return entry.Locked || (entry.Published && entry.Date.Before(today))
}

type SchedulePOTDRequest struct {
	Date      string `json:"date"` // YYYY-MM-DD
	ProblemID string `json:"problem_id"`
}

// Schedule assigns a problem to a calendar date. Past dates are rejected;
// scheduling for today publishes the entry immediately.
func (s *POTDService) Schedule(ctx context.Context, req SchedulePOTDRequest) (*model.ScheduledPOTD, error) {
	if req.Date == "" || req.ProblemID == "" {
		return nil, common.Errorf("date and problem_id are required: %w", common.ErrValidation)
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, common.Errorf("invalid date %q, expected YYYY-MM-DD: %w", req.Date, common.ErrValidation)
	}
	date = NormalizeDate(date)
	today := NormalizeDate(s.now())

	if date.Before(today) {
		return nil, common.Errorf("cannot schedule a problem for a past date: %w", common.ErrBadRequest)
	}
	if _, err := s.problemRepo.FindProblemByID(ctx, req.ProblemID); err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}

	entry := &model.ScheduledPOTD{
		ID:        uuid.NewString(),
		Date:      date,
		ProblemID: req.ProblemID,
		Published: date.Equal(today),
	}
	if err := s.potdRepo.Create(ctx, nil, entry); err != nil {
		return nil, err
	}
	entry.Status = DeriveStatus(entry.Date, today, entry.Published)
	return entry, nil
}

// Reschedule swaps the problem on an existing, unlocked entry.
func (s *POTDService) Reschedule(ctx context.Context, entryID, problemID string) (*model.ScheduledPOTD, error) {
	entry, err := s.potdRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	today := NormalizeDate(s.now())
	if IsLocked(entry, today) {
		return nil, common.Errorf("schedule entry is published and locked: %w", common.ErrLocked)
	}
	if _, err := s.problemRepo.FindProblemByID(ctx, problemID); err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}
	if err := s.potdRepo.UpdateProblem(ctx, nil, entryID, problemID); err != nil {
		return nil, err
	}
	return s.decorated(ctx, entryID)
}

func (s *POTDService) Delete(ctx context.Context, entryID string) error {
	entry, err := s.potdRepo.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if IsLocked(entry, NormalizeDate(s.now())) {
		return common.Errorf("schedule entry is published and locked: %w", common.ErrLocked)
	}
	return s.potdRepo.Delete(ctx, nil, entryID)
}

// ForcePublish manually promotes today's entry to published. This is the
// recovery path when the external daily trigger did not fire.
func (s *POTDService) ForcePublish(ctx context.Context, entryID string) (*model.ScheduledPOTD, error) {
	entry, err := s.potdRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	today := NormalizeDate(s.now())
	if !entry.Date.Equal(today) {
		return nil, common.Errorf("only today's entry can be force-published: %w", common.ErrBadRequest)
	}
	if !entry.Published {
		if err := s.potdRepo.SetPublished(ctx, nil, entryID, true); err != nil {
			return nil, err
		}
	}
	return s.decorated(ctx, entryID)
}

// Today returns the published problem of the day, if any.
func (s *POTDService) Today(ctx context.Context) (*model.ScheduledPOTD, error) {
	today := NormalizeDate(s.now())
	entry, err := s.potdRepo.GetByDate(ctx, today)
	if err != nil {
		return nil, err
	}
	if !entry.Published {
		return nil, common.ErrNotFound
	}
	entry.Status = model.POTDPublished
	return entry, nil
}

// ListSchedule returns the schedule window with derived statuses. Entries
// whose lock condition is newly met get their stored flag persisted here so
// the lock survives even if the derivation rules change later.
func (s *POTDService) ListSchedule(ctx context.Context, from, to time.Time) ([]model.ScheduledPOTD, error) {
	entries, err := s.potdRepo.List(ctx, NormalizeDate(from), NormalizeDate(to))
	if err != nil {
		return nil, err
	}
	today := NormalizeDate(s.now())
	for i := range entries {
		entries[i].Status = DeriveStatus(entries[i].Date, today, entries[i].Published)
		if !entries[i].Locked && IsLocked(&entries[i], today) {
			if err := s.potdRepo.SetLocked(ctx, nil, entries[i].ID, true); err != nil {
				log.Printf("WARN: Failed to persist lock for POTD entry %s: %v", entries[i].ID, err)
			} else {
				entries[i].Locked = true
			}
		}
	}
	return entries, nil
}

func (s *POTDService) decorated(ctx context.Context, entryID string) (*model.ScheduledPOTD, error) {
	entry, err := s.potdRepo.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, common.Errorf("failed to reload schedule entry: %w", err)
	}
	entry.Status = DeriveStatus(entry.Date, NormalizeDate(s.now()), entry.Published)
	return entry, nil
}
