package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"leadflow/internal/models"
)

// ActivityRepository is the activity-log sink for stage changes.
type ActivityRepository interface {
	Store(ctx context.Context, a *models.Activity) error
	ListByLead(ctx context.Context, leadID int64, limit int) ([]models.Activity, error)
}

type activityRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewActivityRepository(db *sql.DB, dialect Dialect) ActivityRepository {
	return &activityRepository{db: db, dialect: dialect}
}

func (r *activityRepository) Store(ctx context.Context, a *models.Activity) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal activity metadata: %w", err)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO lead_activities (lead_id, type, automated, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	// jsonb принимает текст; []byte lib/pq отправил бы как bytea
	return r.db.QueryRowContext(ctx, r.dialect.Rebind(query),
		a.LeadID, string(a.Type), a.Automated, string(meta), a.CreatedAt,
	).Scan(&a.ID)
}

func (r *activityRepository) ListByLead(ctx context.Context, leadID int64, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, lead_id, type, automated, metadata, created_at
		FROM lead_activities
		WHERE lead_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Activity
	for rows.Next() {
		var (
			a    models.Activity
			typ  string
			meta string
		)
		if err := rows.Scan(&a.ID, &a.LeadID, &typ, &a.Automated, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Type = models.ActivityType(typ)
		if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
			return nil, fmt.Errorf("activity %d metadata: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
