package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"
)

// FeedbackService proxies submission context to the external MIM feedback
// service and relays its response. The request context carries client
// cancellation: when the frontend aborts a superseded fetch, the in-flight
// upstream call is aborted with it.
type FeedbackService struct {
	submissionRepo repository.SubmissionRepository
	problemRepo    repository.ProblemRepository
	baseURL        string
	httpClient     *http.Client
}

func NewFeedbackService(
	submissionRepo repository.SubmissionRepository,
	problemRepo repository.ProblemRepository,
	baseURL string,
	timeout time.Duration,
) *FeedbackService {
	return &FeedbackService{
		submissionRepo: submissionRepo,
		problemRepo:    problemRepo,
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

type feedbackUpstreamRequest struct {
	ProblemTitle       string          `json:"problem_title"`
	ProblemDescription string          `json:"problem_description"`
	AIMeta             json.RawMessage `json:"ai_meta,omitempty"`
	Language           string          `json:"language"`
	Code               string          `json:"code"`
	Verdict            model.Verdict   `json:"verdict"`
	PassedCount        int             `json:"passed_count"`
	TotalCount         int             `json:"total_count"`
}

type FeedbackResponse struct {
	Feedback string `json:"feedback"`
}

func (s *FeedbackService) SubmissionFeedback(ctx context.Context, submissionID, callerID string, isAdmin bool) (*FeedbackResponse, error) {
	if s.baseURL == "" {
		return nil, common.Errorf("feedback service is not configured: %w", common.ErrServiceUnavailable)
	}

	sub, err := s.submissionRepo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && sub.UserID != callerID {
		return nil, common.ErrForbidden
	}
	if !sub.Verdict.Terminal() {
		return nil, common.Errorf("submission is still being judged: %w", common.ErrBadRequest)
	}

	problem, err := s.problemRepo.FindProblemByID(ctx, sub.ProblemID)
	if err != nil {
		return nil, common.Errorf("problem not found for submission: %w", err)
	}

	payload, err := json.Marshal(feedbackUpstreamRequest{
		ProblemTitle:       problem.Title,
		ProblemDescription: problem.Description,
		AIMeta:             problem.AIMeta,
		Language:           sub.Language,
		Code:               sub.Code,
		Verdict:            sub.Verdict,
		PassedCount:        sub.PassedCount,
		TotalCount:         sub.TotalCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feedback request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/feedback", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build feedback request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		// Includes context cancellation from an aborted client fetch.
		return nil, fmt.Errorf("feedback service unreachable: %v: %w", err, common.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feedback service returned %d: %s: %w", resp.StatusCode, string(msg), common.ErrServiceUnavailable)
	}

	var out FeedbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode feedback response: %w", err)
	}
	return &out, nil
}
