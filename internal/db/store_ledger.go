package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/contract-broker/internal/models"
	"github.com/jackc/pgx/v5"
)

func (s *Store) AppendRun(ctx context.Context, run *models.ScrapingRun) error {
	if run.ScrapedAt.IsZero() {
		run.ScrapedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO scraping_runs (cycle_id, source, contracts_found, contracts_added, status, error_message, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, run.CycleID, run.Source, run.ContractsFound, run.ContractsAdded, run.Outcome, run.ErrorMessage, run.ScrapedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("append run for %s: %w", run.Source, err)
	}
	return nil
}

func (s *Store) RecentRuns(ctx context.Context, limit int) ([]models.ScrapingRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, cycle_id, source, contracts_found, contracts_added, status, error_message, scraped_at
		FROM scraping_runs
		ORDER BY scraped_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	runs := []models.ScrapingRun{}
	for rows.Next() {
		var r models.ScrapingRun
		if err := rows.Scan(&r.ID, &r.CycleID, &r.Source, &r.ContractsFound, &r.ContractsAdded,
			&r.Outcome, &r.ErrorMessage, &r.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ActiveTemplate returns the newest active template of the given type, or ErrNotFound.
func (s *Store) ActiveTemplate(ctx context.Context, kind models.TemplateType) (*models.NotificationTemplate, error) {
	var t models.NotificationTemplate
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, template_type, subject, body, is_active, created_at
		FROM notification_templates
		WHERE template_type = $1 AND is_active = TRUE
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, kind).Scan(&t.ID, &t.Name, &t.Type, &t.Subject, &t.Body, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("template %s: %w", kind, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("active template %s: %w", kind, err)
	}
	return &t, nil
}

func (s *Store) RevenueSince(ctx context.Context, since time.Time) ([]models.RevenueRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, contract_id, placement_date, fee_amount, success_rate, created_at
		FROM revenue_records
		WHERE created_at >= $1
		ORDER BY placement_date ASC, id ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []models.RevenueRecord
	for rows.Next() {
		var r models.RevenueRecord
		if err := rows.Scan(&r.ID, &r.ContractID, &r.PlacementDate, &r.FeeAmount, &r.SuccessRate, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
