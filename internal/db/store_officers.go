package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/david/contract-broker/internal/models"
	"github.com/jackc/pgx/v5"
)

const officerCols = `id, name, agency, email, phone, last_contact_date, relationship_strength, notes, created_at`

func scanOfficer(scan func(dest ...interface{}) error) (models.ProcurementOfficer, error) {
	var o models.ProcurementOfficer
	err := scan(&o.ID, &o.Name, &o.Agency, &o.Email, &o.Phone, &o.LastContactDate,
		&o.RelationshipStrength, &o.Notes, &o.CreatedAt)
	return o, err
}

func (s *Store) GetOfficer(ctx context.Context, id int64) (*models.ProcurementOfficer, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM procurement_officers WHERE id = $1", officerCols), id)
	o, err := scanOfficer(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("officer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get officer %d: %w", id, err)
	}
	return &o, nil
}

// ListOfficersByAgency matches officers whose agency contains the given text, case-insensitively.
func (s *Store) ListOfficersByAgency(ctx context.Context, agency string) ([]models.ProcurementOfficer, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM procurement_officers WHERE agency ILIKE '%%' || $1 || '%%' ORDER BY id", officerCols),
		agency)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var officers []models.ProcurementOfficer
	for rows.Next() {
		o, err := scanOfficer(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		officers = append(officers, o)
	}
	return officers, rows.Err()
}

const communicationCols = `id, officer_id, communication_date, communication_type, subject, outcome, follow_up_date, created_at`

func scanCommunication(scan func(dest ...interface{}) error) (models.Communication, error) {
	var c models.Communication
	err := scan(&c.ID, &c.OfficerID, &c.Date, &c.Type, &c.Subject, &c.Outcome, &c.FollowUpDate, &c.CreatedAt)
	return c, err
}

// CommunicationsDueBy returns communications whose follow-up date is on or before day.
func (s *Store) CommunicationsDueBy(ctx context.Context, day time.Time) ([]models.Communication, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM communications
		WHERE follow_up_date IS NOT NULL AND follow_up_date <= $1::date
		ORDER BY follow_up_date ASC, id ASC
	`, communicationCols), day)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var comms []models.Communication
	for rows.Next() {
		c, err := scanCommunication(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		comms = append(comms, c)
	}
	return comms, rows.Err()
}

func (s *Store) LatestCommunication(ctx context.Context, officerID int64) (*models.Communication, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM communications
		WHERE officer_id = $1
		ORDER BY communication_date DESC, id DESC
		LIMIT 1
	`, communicationCols), officerID)
	c, err := scanCommunication(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("communications for officer %d: %w", officerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest communication: %w", err)
	}
	return &c, nil
}

func (s *Store) ListCommunications(ctx context.Context, officerID int64) ([]models.Communication, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM communications WHERE officer_id = $1 ORDER BY communication_date DESC, id DESC
	`, communicationCols), officerID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	comms := []models.Communication{}
	for rows.Next() {
		c, err := scanCommunication(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		comms = append(comms, c)
	}
	return comms, rows.Err()
}

// AppendCommunication records an outreach and bumps the officer's last contact date.
func (s *Store) AppendCommunication(ctx context.Context, c *models.Communication) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO communications (officer_id, communication_date, communication_type, subject, outcome, follow_up_date)
		VALUES ($1, $2, $3, $4, $5, $6::date)
		RETURNING id, created_at
	`, c.OfficerID, c.Date, c.Type, c.Subject, c.Outcome, c.FollowUpDate).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert communication: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE procurement_officers
		SET last_contact_date = GREATEST(COALESCE(last_contact_date, $2), $2)
		WHERE id = $1
	`, c.OfficerID, c.Date); err != nil {
		return fmt.Errorf("update last contact: %w", err)
	}

	return tx.Commit(ctx)
}
