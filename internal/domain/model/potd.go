package model

import "time"

// POTDStatus is derived from the schedule date, today's date and the
// published flag; it is never stored.
type POTDStatus string

const (
	POTDScheduled POTDStatus = "scheduled"
	POTDToday     POTDStatus = "today"
	POTDPublished POTDStatus = "published"
	POTDMissed    POTDStatus = "missed"
)

type ScheduledPOTD struct {
	ID           string     `json:"id"`
	Date         time.Time  `json:"date"` // UTC midnight
	ProblemID    string     `json:"problem_id"`
	Published    bool       `json:"published"`
	Locked       bool       `json:"locked"`
	Status       POTDStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProblemTitle *string    `json:"problem_title,omitempty"`
	ProblemSlug  *string    `json:"problem_slug,omitempty"`
}
