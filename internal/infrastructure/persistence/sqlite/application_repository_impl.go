package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/repository"
)

// ApplicationRepositoryImpl implements repository.ApplicationRepository with SQLite
type ApplicationRepositoryImpl struct {
	db *sql.DB
}

// NewApplicationRepository creates a new SQLite-based application repository
func NewApplicationRepository(db *sql.DB) repository.ApplicationRepository {
	return &ApplicationRepositoryImpl{db: db}
}

// Create stores a new application with any history it already carries
func (r *ApplicationRepositoryImpl) Create(ctx context.Context, app *application.Application) error {
	applicantJSON, err := json.Marshal(app.Applicant())
	if err != nil {
		return fmt.Errorf("marshal applicant: %w", err)
	}

	return inTx(ctx, r.db, func(db dbExecutor) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO applications (id, applicant_name, applicant_json, current_stage, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			app.ID().String(),
			app.Applicant().FullName(),
			string(applicantJSON),
			app.CurrentStage().String(),
			app.Version(),
			formatTime(app.CreatedAt().Value()),
			formatTime(app.UpdatedAt().Value()),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", repository.ErrAlreadyExists, app.ID())
			}
			return fmt.Errorf("insert application: %w", err)
		}
		return insertTransitions(ctx, db, app.ID(), 0, app.History())
	})
}

// Load retrieves an application with its full history
func (r *ApplicationRepositoryImpl) Load(ctx context.Context, id model.ApplicationID) (*application.Application, error) {
	return loadApplication(ctx, getDB(ctx, r.db), id)
}

// Save appends pending records if the stored version still equals app.ReadVersion().
// The conditional UPDATE is the compare-and-set; a stale snapshot matches no row.
func (r *ApplicationRepositoryImpl) Save(ctx context.Context, app *application.Application) error {
	pending := app.PendingRecords()

	return inTx(ctx, r.db, func(db dbExecutor) error {
		result, err := db.ExecContext(ctx, `
			UPDATE applications
			SET current_stage = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?`,
			app.CurrentStage().String(),
			app.Version(),
			formatTime(app.UpdatedAt().Value()),
			app.ID().String(),
			app.ReadVersion(),
		)
		if err != nil {
			return fmt.Errorf("update application: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			exists, err := existsApplication(ctx, db, app.ID())
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: %s", repository.ErrNotFound, app.ID())
			}
			return fmt.Errorf("%w: %s", repository.ErrConflict, app.ID())
		}

		if err := insertTransitions(ctx, db, app.ID(), app.ReadVersion(), pending); err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", repository.ErrConflict, app.ID())
			}
			return err
		}
		return nil
	})
}

// Exists reports whether an application id is taken
func (r *ApplicationRepositoryImpl) Exists(ctx context.Context, id model.ApplicationID) (bool, error) {
	return existsApplication(ctx, getDB(ctx, r.db), id)
}

// List retrieves applications by filter criteria, newest first
func (r *ApplicationRepositoryImpl) List(ctx context.Context, filter repository.ApplicationFilter) ([]*application.Application, error) {
	db := getDB(ctx, r.db)

	query := `SELECT id FROM applications WHERE 1=1`
	var args []interface{}

	if len(filter.Stages) > 0 {
		placeholders := make([]string, len(filter.Stages))
		for i, s := range filter.Stages {
			placeholders[i] = "?"
			args = append(args, s.String())
		}
		query += fmt.Sprintf(" AND current_stage IN (%s)", strings.Join(placeholders, ","))
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query += " AND (LOWER(id) LIKE ? OR LOWER(applicant_name) LIKE ?)"
		args = append(args, pattern, pattern)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	} else if filter.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}

	var ids []model.ApplicationID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan application id: %w", err)
		}
		id, err := model.NewApplicationID(raw)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	// Release the connection before loading each application
	rows.Close()

	apps := make([]*application.Application, 0, len(ids))
	for _, id := range ids {
		app, err := loadApplication(ctx, db, id)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func existsApplication(ctx context.Context, db dbExecutor, id model.ApplicationID) (bool, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications WHERE id = ?`, id.String()).Scan(&count); err != nil {
		return false, fmt.Errorf("check application exists: %w", err)
	}
	return count > 0, nil
}

func loadApplication(ctx context.Context, db dbExecutor, id model.ApplicationID) (*application.Application, error) {
	var applicantJSON, createdAt, updatedAt string
	err := db.QueryRowContext(ctx, `
		SELECT applicant_json, created_at, updated_at
		FROM applications WHERE id = ?`, id.String(),
	).Scan(&applicantJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find application: %w", err)
	}

	var applicant application.Applicant
	if err := json.Unmarshal([]byte(applicantJSON), &applicant); err != nil {
		return nil, fmt.Errorf("unmarshal applicant: %w", err)
	}

	history, err := loadTransitions(ctx, db, id)
	if err != nil {
		return nil, err
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return application.Reconstruct(id, applicant, history, created, updated)
}

func loadTransitions(ctx context.Context, db dbExecutor, id model.ApplicationID) ([]application.TransitionRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, from_stage, to_stage, actor, note, created_at
		FROM application_transitions
		WHERE application_id = ?
		ORDER BY seq ASC`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var history []application.TransitionRecord
	for rows.Next() {
		var recID, from, to, actor, note, at string
		if err := rows.Scan(&recID, &from, &to, &actor, &note, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		ts, err := parseTime(at)
		if err != nil {
			return nil, fmt.Errorf("parse transition time: %w", err)
		}
		history = append(history, application.TransitionRecord{
			ID:        recID,
			From:      model.Stage(from),
			To:        model.Stage(to),
			Actor:     actor,
			Timestamp: ts,
			Note:      note,
		})
	}
	return history, rows.Err()
}

// insertTransitions writes records at positions offset+1, offset+2, ...
func insertTransitions(ctx context.Context, db dbExecutor, id model.ApplicationID, offset int, records []application.TransitionRecord) error {
	for i, rec := range records {
		_, err := db.ExecContext(ctx, `
			INSERT INTO application_transitions (id, application_id, seq, from_stage, to_stage, actor, note, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID,
			id.String(),
			offset+i+1,
			rec.From.String(),
			rec.To.String(),
			rec.Actor,
			rec.Note,
			formatTime(rec.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("insert transition %d: %w", offset+i+1, err)
		}
	}
	return nil
}
