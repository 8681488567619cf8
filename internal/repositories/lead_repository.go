package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leadflow/internal/models"
	"leadflow/internal/workflow"
)

// LeadRepository keeps the lead's current stage and the transition ledger in
// one database so both are written in a single transaction.
type LeadRepository struct {
	db      *sql.DB
	dialect Dialect
}

var _ workflow.Store = (*LeadRepository)(nil)

func NewLeadRepository(db *sql.DB, dialect Dialect) *LeadRepository {
	if db == nil {
		panic("received nil database connection")
	}
	return &LeadRepository{db: db, dialect: dialect}
}

// Create inserts a lead in stage NEW. Leads are normally created by the CRM;
// this is used by seeding and tests.
func (r *LeadRepository) Create(ctx context.Context, title string, ownerID int64) (*models.Leads, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	lead := &models.Leads{
		Title:          title,
		OwnerID:        ownerID,
		Stage:          models.StageNew,
		StageChangedAt: now,
		CreatedAt:      now,
	}
	const query = `
		INSERT INTO leads (title, owner_id, stage, stage_version, stage_changed_at, created_at)
		VALUES ($1, $2, $3, 0, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query),
		lead.Title, lead.OwnerID, string(lead.Stage), lead.StageChangedAt, lead.CreatedAt,
	).Scan(&lead.ID)
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

func (r *LeadRepository) GetCurrentStage(ctx context.Context, leadID int64) (models.LeadStage, error) {
	const query = `SELECT stage, stage_version, stage_changed_at FROM leads WHERE id = $1`
	st := models.LeadStage{LeadID: leadID}
	var stage string
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), leadID).Scan(&stage, &st.Version, &st.ChangedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LeadStage{}, fmt.Errorf("lead %d: %w", leadID, workflow.ErrLeadNotFound)
	}
	if err != nil {
		return models.LeadStage{}, fmt.Errorf("get lead stage: %w", err)
	}
	st.Stage = models.Stage(stage)
	return st, nil
}

// SetCurrentStageAtomically: compare-and-swap по stage_version плюс запись в журнал, одной транзакцией.
func (r *LeadRepository) SetCurrentStageAtomically(ctx context.Context, rec models.TransitionRecord, version int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const update = `
		UPDATE leads
		SET stage = $1, stage_version = stage_version + 1, stage_changed_at = $2
		WHERE id = $3 AND stage = $4 AND stage_version = $5
	`
	res, err := tx.ExecContext(ctx, r.dialect.Rebind(update),
		string(rec.ToStage), rec.OccurredAt, rec.LeadID, string(rec.FromStage), version,
	)
	if err != nil {
		return fmt.Errorf("update lead stage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update lead stage: %w", err)
	}
	if n == 0 {
		return r.conflictOrMissing(ctx, tx, rec.LeadID)
	}

	const insert = `
		INSERT INTO lead_stage_transitions
			(id, lead_id, from_stage, to_stage, reason, actor, automated, reactivation, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var reason sql.NullString
	if rec.Reason != nil {
		reason = sql.NullString{String: *rec.Reason, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, r.dialect.Rebind(insert),
		rec.ID, rec.LeadID, string(rec.FromStage), string(rec.ToStage), reason,
		rec.Actor.String(), rec.Automated, rec.Reactivation, rec.OccurredAt,
	); err != nil {
		return fmt.Errorf("append transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

func (r *LeadRepository) conflictOrMissing(ctx context.Context, tx *sql.Tx, leadID int64) error {
	var exists int
	err := tx.QueryRowContext(ctx, r.dialect.Rebind(`SELECT 1 FROM leads WHERE id = $1`), leadID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lead %d: %w", leadID, workflow.ErrLeadNotFound)
	}
	if err != nil {
		return fmt.Errorf("check lead: %w", err)
	}
	return workflow.ErrVersionConflict
}

func (r *LeadRepository) ListByLead(ctx context.Context, leadID int64, limit int, before *time.Time) ([]models.TransitionRecord, error) {
	limit = workflow.ClampLimit(limit)
	query := `
		SELECT id, lead_id, from_stage, to_stage, reason, actor, automated, reactivation, occurred_at
		FROM lead_stage_transitions
		WHERE lead_id = $1`
	args := []interface{}{leadID}
	if before != nil {
		query += ` AND occurred_at < $2 ORDER BY occurred_at DESC LIMIT $3`
		args = append(args, before.UTC(), limit)
	} else {
		query += ` ORDER BY occurred_at DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	out := []models.TransitionRecord{}
	for rows.Next() {
		var (
			rec      models.TransitionRecord
			from, to string
			reason   sql.NullString
			actor    string
		)
		if err := rows.Scan(&rec.ID, &rec.LeadID, &from, &to, &reason, &actor,
			&rec.Automated, &rec.Reactivation, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		rec.FromStage = models.Stage(from)
		rec.ToStage = models.Stage(to)
		if reason.Valid {
			text := reason.String
			rec.Reason = &text
		}
		if rec.Actor, err = models.ParseActor(actor); err != nil {
			return nil, fmt.Errorf("scan transition %s: %w", rec.ID, err)
		}
		rec.OccurredAt = rec.OccurredAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return out, nil
}

func (r *LeadRepository) CountByLead(ctx context.Context, leadID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT COUNT(*) FROM lead_stage_transitions WHERE lead_id = $1`), leadID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transitions: %w", err)
	}
	return count, nil
}
