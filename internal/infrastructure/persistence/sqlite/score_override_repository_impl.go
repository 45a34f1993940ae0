package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/repository"
)

// ScoreOverrideRepositoryImpl implements repository.ScoreOverrideRepository with SQLite
type ScoreOverrideRepositoryImpl struct {
	db *sql.DB
}

// NewScoreOverrideRepository creates a new SQLite-based score override ledger
func NewScoreOverrideRepository(db *sql.DB) repository.ScoreOverrideRepository {
	return &ScoreOverrideRepositoryImpl{db: db}
}

// Append records a new override
func (r *ScoreOverrideRepositoryImpl) Append(ctx context.Context, o application.ScoreOverride) error {
	var previous sql.NullFloat64
	if o.PreviousScore != nil {
		previous = sql.NullFloat64{Float64: *o.PreviousScore, Valid: true}
	}

	_, err := getDB(ctx, r.db).ExecContext(ctx, `
		INSERT INTO score_overrides (id, application_id, overridden_by, previous_score, new_score, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID,
		o.ApplicationID,
		o.OverriddenBy,
		previous,
		o.NewScore,
		o.Reason,
		formatTime(o.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert score override: %w", err)
	}
	return nil
}

// ListByApplication returns overrides for one application, oldest first
func (r *ScoreOverrideRepositoryImpl) ListByApplication(ctx context.Context, id model.ApplicationID) ([]application.ScoreOverride, error) {
	rows, err := getDB(ctx, r.db).QueryContext(ctx, `
		SELECT id, application_id, overridden_by, previous_score, new_score, reason, created_at
		FROM score_overrides
		WHERE application_id = ?
		ORDER BY created_at ASC, rowid ASC`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query score overrides: %w", err)
	}
	defer rows.Close()

	var overrides []application.ScoreOverride
	for rows.Next() {
		var o application.ScoreOverride
		var previous sql.NullFloat64
		var at string
		if err := rows.Scan(&o.ID, &o.ApplicationID, &o.OverriddenBy, &previous, &o.NewScore, &o.Reason, &at); err != nil {
			return nil, fmt.Errorf("scan score override: %w", err)
		}
		if previous.Valid {
			v := previous.Float64
			o.PreviousScore = &v
		}
		if o.Timestamp, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("parse override time: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}
