package model

import "time"

type RankingType string

const (
	RankingICPC  RankingType = "icpc"
	RankingIOI   RankingType = "ioi"
	RankingRated RankingType = "rated"
)

func (r RankingType) Valid() bool {
	switch r {
	case RankingICPC, RankingIOI, RankingRated:
		return true
	}
	return false
}

// PenaltyRules configures how wrong submissions cost time on the standings.
// The ranking computation itself consumes this; the backend only stores and
// applies the simple penalty when building standings.
type PenaltyRules struct {
	WrongSubmissionPenaltyMin int  `json:"wrong_submission_penalty_min"`
	PenaltyOnlyAfterAccept    bool `json:"penalty_only_after_accept"`
}

type Contest struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	Description      string           `json:"description,omitempty"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          time.Time        `json:"end_time"`
	Visible          bool             `json:"visible"`
	RegistrationOpen bool             `json:"registration_open"`
	RankingType      RankingType      `json:"ranking_type"`
	Penalty          PenaltyRules     `json:"penalty"`
	Problems         []ContestProblem `json:"problems,omitempty"`
	RegisteredCount  int              `json:"registered_count"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type ContestProblem struct {
	ContestID    string  `json:"contest_id"`
	ProblemID    string  `json:"problem_id"`
	Label        string  `json:"label"` // A, B, C, ... unique and contiguous
	Points       int     `json:"points"`
	ProblemTitle *string `json:"problem_title,omitempty"`
	ProblemSlug  *string `json:"problem_slug,omitempty"`
}

type ContestRegistration struct {
	ContestID    string    `json:"contest_id"`
	UserID       string    `json:"user_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

type StandingsRow struct {
	Rank       int    `json:"rank"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Solved     int    `json:"solved"`
	Points     int    `json:"points"`
	PenaltyMin int    `json:"penalty_min"`
}
