package repository

import (
	"context"
	"errors"
	"fmt"

	"outreach_backend/internal/assignment/domain"

	"github.com/jackc/pgx/v5"
)

const getSettingsQuery = `
	SELECT max_total_contacts, max_per_platform, delay_between_contacts_ms, is_enabled, updated_at
	FROM assignment_settings
	WHERE id = 1`

const upsertSettingsQuery = `
	INSERT INTO assignment_settings (id, max_total_contacts, max_per_platform, delay_between_contacts_ms, is_enabled, updated_at)
	VALUES (1, $1, $2, $3, $4, now())
	ON CONFLICT (id) DO UPDATE SET
		max_total_contacts = EXCLUDED.max_total_contacts,
		max_per_platform = EXCLUDED.max_per_platform,
		delay_between_contacts_ms = EXCLUDED.delay_between_contacts_ms,
		is_enabled = EXCLUDED.is_enabled,
		updated_at = now()
	RETURNING max_total_contacts, max_per_platform, delay_between_contacts_ms, is_enabled, updated_at`

// GetSettings returns the stored settings, or the defaults when no row exists.
func (r *Repository) GetSettings(ctx context.Context) (domain.Settings, error) {
	var s domain.Settings
	err := r.pool.QueryRow(ctx, getSettingsQuery).Scan(
		&s.MaxTotalContacts, &s.MaxPerPlatform, &s.DelayBetweenContactsMs, &s.IsEnabled, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("get assignment settings: %w", err)
	}
	return s, nil
}

// UpsertSettings writes the singleton row.
func (r *Repository) UpsertSettings(ctx context.Context, in domain.Settings) (domain.Settings, error) {
	var s domain.Settings
	err := r.pool.QueryRow(ctx, upsertSettingsQuery,
		in.MaxTotalContacts, in.MaxPerPlatform, in.DelayBetweenContactsMs, in.IsEnabled,
	).Scan(&s.MaxTotalContacts, &s.MaxPerPlatform, &s.DelayBetweenContactsMs, &s.IsEnabled, &s.UpdatedAt)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("upsert assignment settings: %w", err)
	}
	return s, nil
}
