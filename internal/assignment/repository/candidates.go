package repository

import (
	"context"
	"errors"
	"fmt"

	"outreach_backend/internal/assignment/domain"
	"outreach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// listEligibleQuery windows eligible contacts per platform, oldest first.
// Blocklist matches cover the contact email, the email domain, the company
// domain and the company itself.
const listEligibleQuery = `
	WITH eligible AS (
		SELECT
			ct.id AS contact_id,
			ct.company_id,
			co.platform_id,
			p.name AS platform_name,
			COALESCE(p.campaign_id, '') AS campaign_id,
			ct.email,
			ct.first_name,
			ct.last_name,
			COALESCE(ct.title, '') AS title,
			co.name AS company_name,
			COALESCE(co.domain, '') AS company_domain,
			co.is_customer,
			ct.created_at,
			ROW_NUMBER() OVER (PARTITION BY co.platform_id ORDER BY ct.created_at, ct.id) AS rn
		FROM contacts ct
		JOIN companies co ON co.id = ct.company_id
		JOIN platforms p ON p.id = co.platform_id
		WHERE p.is_active
			AND co.qualification_status = 'qualified'
			AND (ct.campaign_assignment_status IS NULL OR ct.campaign_assignment_status = 'error')
			AND ct.email IS NOT NULL AND ct.email <> ''
			AND NOT EXISTS (
				SELECT 1 FROM blocklist_entries b
				WHERE b.is_active AND (
					(b.entry_type = 'email' AND b.value = lower(ct.email))
					OR (b.entry_type = 'domain' AND (b.value = lower(split_part(ct.email, '@', 2)) OR b.value = lower(co.domain)))
					OR (b.entry_type = 'company' AND b.value = co.id::text)
				)
			)
			AND ($1::uuid IS NULL OR co.platform_id = $1)
			AND NOT (ct.id = ANY($2::uuid[]))
	)
	SELECT contact_id, company_id, platform_id, platform_name, campaign_id, email, first_name, last_name,
		title, company_name, company_domain, is_customer, created_at
	FROM eligible
	WHERE rn <= $3
	ORDER BY platform_name, platform_id, created_at, contact_id`

const companyEligibilityQuery = `
	SELECT qualification_status, is_customer
	FROM companies
	WHERE id = $1`

const getPlatformQuery = `
	SELECT id, name, campaign_id, is_active
	FROM platforms
	WHERE id = $1`

// ListEligible returns eligible candidates ordered by platform, then oldest first.
func (r *Repository) ListEligible(ctx context.Context, q CandidateQuery) ([]domain.Candidate, error) {
	exclude := q.Exclude
	if exclude == nil {
		exclude = []uuid.UUID{}
	}

	rows, err := r.pool.Query(ctx, listEligibleQuery, q.PlatformID, exclude, q.PerPlatformLimit)
	if err != nil {
		return nil, fmt.Errorf("list eligible candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]domain.Candidate, 0)
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(
			&c.ContactID, &c.CompanyID, &c.PlatformID, &c.PlatformName, &c.CampaignID, &c.Email,
			&c.FirstName, &c.LastName, &c.Title, &c.CompanyName, &c.CompanyDomain, &c.IsCustomer, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return candidates, nil
}

// CompanyEligibility reads the live qualification of a company.
func (r *Repository) CompanyEligibility(ctx context.Context, companyID uuid.UUID) (CompanyState, error) {
	var state CompanyState
	err := r.pool.QueryRow(ctx, companyEligibilityQuery, companyID).Scan(&state.QualificationStatus, &state.IsCustomer)
	if errors.Is(err, pgx.ErrNoRows) {
		return CompanyState{}, apperr.NotFound("company not found")
	}
	if err != nil {
		return CompanyState{}, fmt.Errorf("company eligibility: %w", err)
	}
	return state, nil
}

// GetPlatform loads a source platform.
func (r *Repository) GetPlatform(ctx context.Context, platformID uuid.UUID) (Platform, error) {
	var p Platform
	err := r.pool.QueryRow(ctx, getPlatformQuery, platformID).Scan(&p.ID, &p.Name, &p.CampaignID, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Platform{}, apperr.NotFound("platform not found")
	}
	if err != nil {
		return Platform{}, fmt.Errorf("get platform: %w", err)
	}
	return p, nil
}
