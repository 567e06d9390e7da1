package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
)

type ContestService struct {
	contestRepo    repository.ContestRepository
	problemRepo    repository.ProblemRepository
	submissionRepo repository.SubmissionRepository
	db             *sql.DB
	rdb            *redis.Client
	now            func() time.Time
}

func NewContestService(
	contestRepo repository.ContestRepository,
	problemRepo repository.ProblemRepository,
	submissionRepo repository.SubmissionRepository,
	db *sql.DB,
	rdb *redis.Client,
) *ContestService {
	return &ContestService{
		contestRepo:    contestRepo,
		problemRepo:    problemRepo,
		submissionRepo: submissionRepo,
		db:             db,
		rdb:            rdb,
		now:            time.Now,
	}
}

type ContestProblemInput struct {
	ProblemID string `json:"problem_id"`
	Label     string `json:"label"`
	Points    int    `json:"points"`
}

type CreateContestRequest struct {
	Name             string                `json:"name"`
	Description      string                `json:"description"`
	StartTime        time.Time             `json:"start_time"`
	EndTime          time.Time             `json:"end_time"`
	Visible          bool                  `json:"visible"`
	RegistrationOpen bool                  `json:"registration_open"`
	RankingType      model.RankingType     `json:"ranking_type"`
	Penalty          model.PenaltyRules    `json:"penalty"`
	Problems         []ContestProblemInput `json:"problems"`
}

// ValidateLabels checks that contest problem labels are unique and
// contiguous from A (A, B, C, ...).
func ValidateLabels(problems []ContestProblemInput) error {
	seen := make(map[string]bool, len(problems))
	for _, p := range problems {
		if len(p.Label) != 1 || p.Label[0] < 'A' || p.Label[0] > 'Z' {
			return common.Errorf("invalid problem label %q: %w", p.Label, common.ErrValidation)
		}
		if seen[p.Label] {
			return common.Errorf("duplicate problem label %q: %w", p.Label, common.ErrValidation)
		}
		seen[p.Label] = true
	}
	for i := 0; i < len(problems); i++ {
		want := string(rune('A' + i))
		if !seen[want] {
			return common.Errorf("problem labels must be contiguous from A, missing %q: %w", want, common.ErrValidation)
		}
	}
	return nil
}

func (s *ContestService) CreateContest(ctx context.Context, req CreateContestRequest) (*model.Contest, error) {
	if req.Name == "" || req.StartTime.IsZero() || req.EndTime.IsZero() {
		return nil, common.Errorf("name, start_time and end_time are required: %w", common.ErrValidation)
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, common.Errorf("end_time must be after start_time: %w", common.ErrValidation)
	}
	if !req.RankingType.Valid() {
		return nil, common.Errorf("invalid ranking_type %q: %w", req.RankingType, common.ErrValidation)
	}
	if err := ValidateLabels(req.Problems); err != nil {
		return nil, err
	}

	contest := &model.Contest{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Slug:             slug.Make(req.Name),
		Description:      req.Description,
		StartTime:        req.StartTime.UTC(),
		EndTime:          req.EndTime.UTC(),
		Visible:          req.Visible,
		RegistrationOpen: req.RegistrationOpen,
		RankingType:      req.RankingType,
		Penalty:          req.Penalty,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.contestRepo.CreateContest(ctx, tx, contest); err != nil {
		return nil, err
	}
	if err := s.setProblems(ctx, tx, contest, req.Problems); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}
	return contest, nil
}

func (s *ContestService) setProblems(ctx context.Context, tx *sql.Tx, contest *model.Contest, inputs []ContestProblemInput) error {
	problems := make([]model.ContestProblem, 0, len(inputs))
	for _, in := range inputs {
		if _, err := s.problemRepo.FindProblemByID(ctx, in.ProblemID); err != nil {
			return common.Errorf("contest problem %s not found: %w", in.ProblemID, err)
		}
		problems = append(problems, model.ContestProblem{
			ContestID: contest.ID,
			ProblemID: in.ProblemID,
			Label:     in.Label,
			Points:    in.Points,
		})
	}
	if err := s.contestRepo.SetProblems(ctx, tx, contest.ID, problems); err != nil {
		return err
	}
	contest.Problems = problems
	return nil
}

type UpdateContestRequest struct {
	Name             *string                `json:"name,omitempty"`
	Description      *string                `json:"description,omitempty"`
	StartTime        *time.Time             `json:"start_time,omitempty"`
	EndTime          *time.Time             `json:"end_time,omitempty"`
	Visible          *bool                  `json:"visible,omitempty"`
	RegistrationOpen *bool                  `json:"registration_open,omitempty"`
	RankingType      *model.RankingType     `json:"ranking_type,omitempty"`
	Penalty          *model.PenaltyRules    `json:"penalty,omitempty"`
	Problems         *[]ContestProblemInput `json:"problems,omitempty"`
}

func (s *ContestService) UpdateContest(ctx context.Context, contestID string, req UpdateContestRequest) (*model.Contest, error) {
	contest, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		contest.Name = *req.Name
		contest.Slug = slug.Make(*req.Name)
	}
	if req.Description != nil {
		contest.Description = *req.Description
	}
	if req.StartTime != nil {
		contest.StartTime = req.StartTime.UTC()
	}
	if req.EndTime != nil {
		contest.EndTime = req.EndTime.UTC()
	}
	if !contest.EndTime.After(contest.StartTime) {
		return nil, common.Errorf("end_time must be after start_time: %w", common.ErrValidation)
	}
	if req.Visible != nil {
		contest.Visible = *req.Visible
	}
	if req.RegistrationOpen != nil {
		contest.RegistrationOpen = *req.RegistrationOpen
	}
	if req.RankingType != nil {
		if !req.RankingType.Valid() {
			return nil, common.Errorf("invalid ranking_type %q: %w", *req.RankingType, common.ErrValidation)
		}
		contest.RankingType = *req.RankingType
	}
	if req.Penalty != nil {
		contest.Penalty = *req.Penalty
	}
	if req.Problems != nil {
		if err := ValidateLabels(*req.Problems); err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.contestRepo.UpdateContest(ctx, tx, contest); err != nil {
		return nil, err
	}
	if req.Problems != nil {
		if err := s.setProblems(ctx, tx, contest, *req.Problems); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, common.Errorf("failed to commit transaction: %w", err)
	}
	return contest, nil
}

func (s *ContestService) DeleteContest(ctx context.Context, contestID string) error {
	return s.contestRepo.DeleteContest(ctx, nil, contestID)
}

func (s *ContestService) GetContest(ctx context.Context, slugOrID string, isAdmin bool) (*model.Contest, error) {
	contest, err := s.contestRepo.FindContestBySlug(ctx, slugOrID)
	if err != nil {
		if err != common.ErrNotFound {
			return nil, err
		}
		// Only fall back to an ID lookup for something that can be one;
		// anything else would hit the uuid column with invalid syntax.
		if uuid.Validate(slugOrID) != nil {
			return nil, common.ErrNotFound
		}
		contest, err = s.contestRepo.FindContestByID(ctx, slugOrID)
		if err != nil {
			return nil, err
		}
	}
	if !contest.Visible && !isAdmin {
		return nil, common.ErrNotFound
	}
	if contest.Problems, err = s.contestRepo.GetProblems(ctx, contest.ID); err != nil {
		return nil, common.Errorf("failed to load contest problems: %w", err)
	}
	if contest.RegisteredCount, err = s.contestRepo.CountRegistrations(ctx, contest.ID); err != nil {
		return nil, common.Errorf("failed to count registrations: %w", err)
	}
	return contest, nil
}

func (s *ContestService) ListContests(ctx context.Context, isAdmin bool, page, pageSize int) ([]model.Contest, int, error) {
	offset := (page - 1) * pageSize
	return s.contestRepo.ListContests(ctx, !isAdmin, pageSize, offset)
}

func (s *ContestService) Register(ctx context.Context, contestID, userID string) error {
	contest, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return err
	}
	if !contest.RegistrationOpen {
		return common.Errorf("registration is closed for this contest: %w", common.ErrForbidden)
	}
	if s.now().After(contest.EndTime) {
		return common.Errorf("contest has already ended: %w", common.ErrForbidden)
	}
	return s.contestRepo.Register(ctx, nil, contestID, userID)
}

const standingsCacheTTL = 10 * time.Second

func standingsCacheKey(contestID string) string {
	return "contest:standings:" + contestID
}

// Standings returns the current leaderboard, served from the Redis cache
// when a fresh copy exists.
func (s *ContestService) Standings(ctx context.Context, contestID string) ([]model.StandingsRow, error) {
	if s.rdb != nil {
		if data, err := s.rdb.Get(ctx, standingsCacheKey(contestID)).Bytes(); err == nil {
			var rows []model.StandingsRow
			if json.Unmarshal(data, &rows) == nil {
				return rows, nil
			}
		}
	}
	return s.RefreshStandings(ctx, contestID)
}

// RefreshStandings rebuilds the leaderboard from the contest's terminal
// submissions and its scoring configuration, and refreshes the cache. The
// full rating computation is external; this applies only the configured
// wrong-submission penalty. The judge worker calls this after every judged
// contest submission.
func (s *ContestService) RefreshStandings(ctx context.Context, contestID string) ([]model.StandingsRow, error) {
	contest, err := s.contestRepo.FindContestByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	problems, err := s.contestRepo.GetProblems(ctx, contest.ID)
	if err != nil {
		return nil, common.Errorf("failed to load contest problems: %w", err)
	}
	subs, err := s.submissionRepo.GetContestSubmissions(ctx, contest.ID)
	if err != nil {
		return nil, common.Errorf("failed to load contest submissions: %w", err)
	}
	rows := BuildStandings(contest, problems, subs)

	if s.rdb != nil {
		if data, err := json.Marshal(rows); err == nil {
			if err := s.rdb.Set(ctx, standingsCacheKey(contestID), data, standingsCacheTTL).Err(); err != nil {
				log.Printf("WARN: Failed to cache standings for contest %s: %v", contestID, err)
			}
		}
	}
	return rows, nil
}

// BuildStandings folds submissions (in submission order) into ranked rows.
func BuildStandings(contest *model.Contest, problems []model.ContestProblem, subs []model.Submission) []model.StandingsRow {
	pointsFor := make(map[string]int, len(problems))
	for _, p := range problems {
		pointsFor[p.ProblemID] = p.Points
	}

	type attempt struct {
		wrongs    int
		accepted  bool
		acceptMin int
	}
	perUser := map[string]map[string]*attempt{}
	usernames := map[string]string{}

	for _, sub := range subs {
		if _, ok := pointsFor[sub.ProblemID]; !ok {
			continue // submission against a problem no longer in the contest
		}
		if sub.Username != nil {
			usernames[sub.UserID] = *sub.Username
		}
		byProblem, ok := perUser[sub.UserID]
		if !ok {
			byProblem = map[string]*attempt{}
			perUser[sub.UserID] = byProblem
		}
		att, ok := byProblem[sub.ProblemID]
		if !ok {
			att = &attempt{}
			byProblem[sub.ProblemID] = att
		}
		if att.accepted {
			continue // submissions after accept never change the standings
		}
		if sub.Verdict == model.VerdictAccepted {
			att.accepted = true
			att.acceptMin = int(sub.SubmittedAt.Sub(contest.StartTime).Minutes())
			if att.acceptMin < 0 {
				att.acceptMin = 0
			}
		} else {
			att.wrongs++
		}
	}

	rows := make([]model.StandingsRow, 0, len(perUser))
	for userID, byProblem := range perUser {
		row := model.StandingsRow{UserID: userID, Username: usernames[userID]}
		for problemID, att := range byProblem {
			wrongPenalty := att.wrongs * contest.Penalty.WrongSubmissionPenaltyMin
			if att.accepted {
				row.Solved++
				row.Points += pointsFor[problemID]
				row.PenaltyMin += att.acceptMin + wrongPenalty
			} else if !contest.Penalty.PenaltyOnlyAfterAccept {
				row.PenaltyMin += wrongPenalty
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch contest.RankingType {
		case model.RankingICPC:
			if a.Solved != b.Solved {
				return a.Solved > b.Solved
			}
		default: // ioi and rated order by points
			if a.Points != b.Points {
				return a.Points > b.Points
			}
		}
		if a.PenaltyMin != b.PenaltyMin {
			return a.PenaltyMin < b.PenaltyMin
		}
		return a.Username < b.Username
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// LabelFor returns the contest label of a problem, e.g. for submission
// result broadcasts.
func LabelFor(problems []model.ContestProblem, problemID string) (string, error) {
	for _, p := range problems {
		if p.ProblemID == problemID {
			return p.Label, nil
		}
	}
	return "", fmt.Errorf("problem %s is not part of the contest: %w", problemID, common.ErrNotFound)
}
