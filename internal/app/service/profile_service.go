package service

import (
	"context"
	"net/url"
	"strings"

	"codearena/internal/common"
	"codearena/internal/domain/model"
	"codearena/internal/domain/repository"

	"github.com/google/uuid"
)

type ProfileService struct {
	profileRepo repository.ProfileRepository
}

func NewProfileService(profileRepo repository.ProfileRepository) *ProfileService {
	return &ProfileService{profileRepo: profileRepo}
}

type SaveProfileRequest struct {
	Platform string `json:"platform"`
	Handle   string `json:"handle"`
	URL      string `json:"url"`
}

func (s *ProfileService) Save(ctx context.Context, userID string, req SaveProfileRequest) (*model.PlatformProfile, error) {
	req.Platform = strings.ToLower(strings.TrimSpace(req.Platform))
	if req.Platform == "" || req.Handle == "" || req.URL == "" {
		return nil, common.Errorf("platform, handle and url are required: %w", common.ErrValidation)
	}
	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, common.Errorf("url must be a valid http(s) URL: %w", common.ErrValidation)
	}

	profile := &model.PlatformProfile{
		ID:       uuid.NewString(),
		UserID:   userID,
		Platform: req.Platform,
		Handle:   req.Handle,
		URL:      req.URL,
	}
	if err := s.profileRepo.Upsert(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *ProfileService) List(ctx context.Context, userID string) ([]model.PlatformProfile, error) {
	return s.profileRepo.ListByUserID(ctx, userID)
}

func (s *ProfileService) Delete(ctx context.Context, userID, platform string) error {
	return s.profileRepo.Delete(ctx, userID, strings.ToLower(strings.TrimSpace(platform)))
}
