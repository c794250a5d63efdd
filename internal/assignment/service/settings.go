package service

import (
	"context"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/internal/assignment/repository"
)

// SettingsService reads and updates the quota settings.
type SettingsService struct {
	store repository.SettingsStore
}

// NewSettingsService creates the service.
func NewSettingsService(store repository.SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// Get returns the stored settings, or the defaults when none were saved.
func (s *SettingsService) Get(ctx context.Context) (domain.Settings, error) {
	return s.store.GetSettings(ctx)
}

// Update validates and saves the settings. Runs already in flight keep the
// values they loaded.
func (s *SettingsService) Update(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	if err := settings.Validate(); err != nil {
		return domain.Settings{}, err
	}
	return s.store.UpsertSettings(ctx, settings)
}
