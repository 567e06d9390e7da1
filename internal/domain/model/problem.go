package model

import (
	"encoding/json"
	"time"
)

type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "Easy"
	DifficultyMedium ProblemDifficulty = "Medium"
	DifficultyHard   ProblemDifficulty = "Hard"
)

func (d ProblemDifficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// AIMeta is optional problem metadata consumed by the feedback subsystem.
type AIMeta struct {
	Topic           string   `json:"topic,omitempty"`
	Algorithms      []string `json:"algorithms,omitempty"`
	ComplexityHints string   `json:"complexity_hints,omitempty"`
	CommonMistakes  []string `json:"common_mistakes,omitempty"`
}

type Problem struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	Slug              string            `json:"slug"`
	Description       string            `json:"description"`
	Difficulty        ProblemDifficulty `json:"difficulty"`
	Constraints       string            `json:"constraints,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	AIMeta            json.RawMessage   `json:"ai_meta,omitempty"`
	RuntimeLimitMs    int               `json:"runtime_limit_ms"`
	MemoryLimitKb     int               `json:"memory_limit_kb"`
	CreatedByID       *string           `json:"created_by_id,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Examples          []Example         `json:"examples,omitempty"`
	TestCases         []TestCase        `json:"test_cases,omitempty"` // Admin-only view
	CreatedByUsername *string           `json:"created_by_username,omitempty"`
}

type Example struct {
	ID          string    `json:"id"`
	ProblemID   string    `json:"problem_id"`
	Input       string    `json:"input"`
	Output      string    `json:"output"`
	Explanation *string   `json:"explanation,omitempty"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
}

type TestCase struct {
	ID             string    `json:"id"`
	ProblemID      string    `json:"problem_id"`
	Stdin          string    `json:"stdin"`
	ExpectedStdout string    `json:"expected_stdout"`
	IsHidden       bool      `json:"is_hidden"`
	Label          *string   `json:"label,omitempty"`
	TimeLimitMs    *int      `json:"time_limit_ms,omitempty"`
	MemoryLimitKb  *int      `json:"memory_limit_kb,omitempty"`
	SortOrder      int       `json:"sort_order"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
