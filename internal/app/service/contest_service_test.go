package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestValidateLabels(t *testing.T) {
	tests := []struct {
		name    string
		labels  []string
		wantErr bool
	}{
		{"single A", []string{"A"}, false},
		{"contiguous", []string{"A", "B", "C"}, false},
		{"order does not matter", []string{"C", "A", "B"}, false},
		{"empty is fine", nil, false},
		{"duplicate", []string{"A", "A"}, true},
		{"gap", []string{"A", "C"}, true},
		{"not starting at A", []string{"B", "C"}, true},
		{"lowercase", []string{"a"}, true},
		{"multi char", []string{"AB"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inputs []ContestProblemInput
			for _, l := range tt.labels {
				inputs = append(inputs, ContestProblemInput{ProblemID: "p" + l, Label: l})
			}
			err := ValidateLabels(inputs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateLabels(%v) error = %v, wantErr %v", tt.labels, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, common.ErrValidation) {
				t.Errorf("error should wrap ErrValidation, got %v", err)
			}
		})
	}
}

func standingsFixture(ranking model.RankingType, penalty model.PenaltyRules) (*model.Contest, []model.ContestProblem) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	contest := &model.Contest{
		ID:          "c1",
		StartTime:   start,
		EndTime:     start.Add(3 * time.Hour),
		RankingType: ranking,
		Penalty:     penalty,
	}
	problems := []model.ContestProblem{
		{ContestID: "c1", ProblemID: "pa", Label: "A", Points: 100},
		{ContestID: "c1", ProblemID: "pb", Label: "B", Points: 200},
	}
	return contest, problems
}

func sub(user, username, problem string, verdict model.Verdict, minute int, start time.Time) model.Submission {
	return model.Submission{
		UserID:      user,
		Username:    &username,
		ProblemID:   problem,
		Verdict:     verdict,
		SubmittedAt: start.Add(time.Duration(minute) * time.Minute),
	}
}

func TestBuildStandingsICPC(t *testing.T) {
	contest, problems := standingsFixture(model.RankingICPC, model.PenaltyRules{
		WrongSubmissionPenaltyMin: 20,
		PenaltyOnlyAfterAccept:    true,
	})
	start := contest.StartTime

	subs := []model.Submission{
		// alice: A wrong at 10, A accepted at 30 -> 30 + 20 = 50 penalty
		sub("u1", "alice", "pa", model.VerdictWrongAnswer, 10, start),
		sub("u1", "alice", "pa", model.VerdictAccepted, 30, start),
		// alice: B never accepted, wrongs carry no penalty under penalty_only_after_accept
		sub("u1", "alice", "pb", model.VerdictWrongAnswer, 40, start),
		// bob: A accepted at 20 -> 20 penalty
		sub("u2", "bob", "pa", model.VerdictAccepted, 20, start),
		// bob: submission after accept is ignored
		sub("u2", "bob", "pa", model.VerdictWrongAnswer, 25, start),
	}

	rows := BuildStandings(contest, problems, subs)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	// alice solved 1 with penalty 50, bob solved 1 with penalty 20: bob ranks first.
	if rows[0].Username != "bob" || rows[0].Rank != 1 {
		t.Errorf("rank 1 = %s (rank %d), want bob", rows[0].Username, rows[0].Rank)
	}
	if rows[0].PenaltyMin != 20 {
		t.Errorf("bob penalty = %d, want 20", rows[0].PenaltyMin)
	}
	if rows[1].Username != "alice" || rows[1].PenaltyMin != 50 {
		t.Errorf("alice: got penalty %d (rank %d), want penalty 50 rank 2", rows[1].PenaltyMin, rows[1].Rank)
	}
	if rows[1].Solved != 1 {
		t.Errorf("alice solved = %d, want 1", rows[1].Solved)
	}
}

func TestBuildStandingsPenaltyWithoutAccept(t *testing.T) {
	contest, problems := standingsFixture(model.RankingICPC, model.PenaltyRules{
		WrongSubmissionPenaltyMin: 20,
		PenaltyOnlyAfterAccept:    false,
	})
	start := contest.StartTime

	rows := BuildStandings(contest, problems, []model.Submission{
		sub("u1", "alice", "pa", model.VerdictWrongAnswer, 10, start),
		sub("u1", "alice", "pa", model.VerdictWrongAnswer, 15, start),
	})
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Solved != 0 || rows[0].PenaltyMin != 40 {
		t.Errorf("got solved=%d penalty=%d, want solved=0 penalty=40", rows[0].Solved, rows[0].PenaltyMin)
	}
}

func TestBuildStandingsIOIOrdersByPoints(t *testing.T) {
	contest, problems := standingsFixture(model.RankingIOI, model.PenaltyRules{WrongSubmissionPenaltyMin: 20, PenaltyOnlyAfterAccept: true})
	start := contest.StartTime

	rows := BuildStandings(contest, problems, []model.Submission{
		// alice solves A (100 points) quickly
		sub("u1", "alice", "pa", model.VerdictAccepted, 5, start),
		// bob solves B (200 points) late
		sub("u2", "bob", "pb", model.VerdictAccepted, 120, start),
	})
	if rows[0].Username != "bob" {
		t.Errorf("rank 1 = %s, want bob (more points beats lower penalty under ioi)", rows[0].Username)
	}
	if rows[0].Points != 200 || rows[1].Points != 100 {
		t.Errorf("points = %d/%d, want 200/100", rows[0].Points, rows[1].Points)
	}
}

func TestBuildStandingsTieBreaksOnUsername(t *testing.T) {
	contest, problems := standingsFixture(model.RankingICPC, model.PenaltyRules{WrongSubmissionPenaltyMin: 20, PenaltyOnlyAfterAccept: true})
	start := contest.StartTime

	rows := BuildStandings(contest, problems, []model.Submission{
		sub("u2", "zoe", "pa", model.VerdictAccepted, 10, start),
		sub("u1", "amy", "pa", model.VerdictAccepted, 10, start),
	})
	if rows[0].Username != "amy" || rows[1].Username != "zoe" {
		t.Errorf("tie order = %s, %s; want amy, zoe", rows[0].Username, rows[1].Username)
	}
}

func TestBuildStandingsIgnoresRemovedProblems(t *testing.T) {
	contest, problems := standingsFixture(model.RankingICPC, model.PenaltyRules{WrongSubmissionPenaltyMin: 20})
	start := contest.StartTime

	rows := BuildStandings(contest, problems, []model.Submission{
		sub("u1", "alice", "gone", model.VerdictAccepted, 10, start),
	})
	if len(rows) != 0 {
		t.Errorf("submissions against removed problems should not produce rows, got %d", len(rows))
	}
}

type fakeContestRepo struct {
	repository.ContestRepository
	contest   *model.Contest
	problems  []model.ContestProblem
	idLookups []string
}

func (f *fakeContestRepo) FindContestByID(ctx context.Context, id string) (*model.Contest, error) {
	f.idLookups = append(f.idLookups, id)
	if f.contest == nil || f.contest.ID != id {
		return nil, common.ErrNotFound
	}
	c := *f.contest
	return &c, nil
}

func (f *fakeContestRepo) FindContestBySlug(ctx context.Context, slug string) (*model.Contest, error) {
	if f.contest == nil || f.contest.Slug != slug {
		return nil, common.ErrNotFound
	}
	c := *f.contest
	return &c, nil
}

func (f *fakeContestRepo) CountRegistrations(ctx context.Context, contestID string) (int, error) {
	return 0, nil
}

func (f *fakeContestRepo) GetProblems(ctx context.Context, contestID string) ([]model.ContestProblem, error) {
	return f.problems, nil
}

type fakeSubmissionRepo struct {
	repository.SubmissionRepository
	subs  []model.Submission
	loads int
}

func (f *fakeSubmissionRepo) GetContestSubmissions(ctx context.Context, contestID string) ([]model.Submission, error) {
	f.loads++
	return f.subs, nil
}

func TestGetContestUnknownSlugIsNotFound(t *testing.T) {
	repo := &fakeContestRepo{}
	svc := NewContestService(repo, nil, nil, nil, nil)

	_, err := svc.GetContest(context.Background(), "no-such-contest", false)
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if len(repo.idLookups) != 0 {
		t.Errorf("ID lookup attempted for %v, want none", repo.idLookups)
	}
}

func TestStandingsServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	contest, problems := standingsFixture(model.RankingICPC, model.PenaltyRules{WrongSubmissionPenaltyMin: 20})
	subRepo := &fakeSubmissionRepo{subs: []model.Submission{
		sub("u1", "alice", "pa", model.VerdictAccepted, 10, contest.StartTime),
	}}
	svc := NewContestService(&fakeContestRepo{contest: contest, problems: problems}, nil, subRepo, nil, rdb)

	ctx := context.Background()
	first, err := svc.Standings(ctx, "c1")
	if err != nil {
		t.Fatalf("first Standings: %v", err)
	}
	second, err := svc.Standings(ctx, "c1")
	if err != nil {
		t.Fatalf("second Standings: %v", err)
	}
	if subRepo.loads != 1 {
		t.Errorf("submissions loaded %d times, want 1 (second read should hit the cache)", subRepo.loads)
	}
	if len(first) != 1 || len(second) != 1 || second[0].Username != "alice" {
		t.Errorf("cached standings = %+v, want alice's row", second)
	}

	// After the TTL the leaderboard is rebuilt from storage.
	mr.FastForward(standingsCacheTTL + time.Second)
	if _, err := svc.Standings(ctx, "c1"); err != nil {
		t.Fatalf("third Standings: %v", err)
	}
	if subRepo.loads != 2 {
		t.Errorf("submissions loaded %d times after expiry, want 2", subRepo.loads)
	}
}

func TestLabelFor(t *testing.T) {
	problems := []model.ContestProblem{
		{ProblemID: "pa", Label: "A"},
		{ProblemID: "pb", Label: "B"},
	}
	label, err := LabelFor(problems, "pb")
	if err != nil || label != "B" {
		t.Errorf("LabelFor(pb) = %q, %v; want B", label, err)
	}
	if _, err := LabelFor(problems, "px"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("LabelFor(px) error = %v, want ErrNotFound", err)
	}
}
