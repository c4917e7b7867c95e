package reports

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create allocates the next report number and inserts the record, all in one
// transaction. The insert is idempotent on (sender_key, conversation_nonce):
// a replayed finalization returns the existing record with created=false and
// the speculatively allocated number is rolled back with the transaction.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Record{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, `
		UPDATE report_counter SET value = value + 1 WHERE id RETURNING value
	`).Scan(&rec.ReportNumber); err != nil {
		return Record{}, false, fmt.Errorf("allocate report number: %w", err)
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Status == "" {
		rec.Status = StatusCompleted
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO reports (
			id, report_number, status, sender_key, conversation_nonce,
			observation_type, classification_code, classification_name,
			location, severity, stop_work, breach_source, control_measure,
			reference, responsible_person, image_key, image_url,
			image_captured_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT ON CONSTRAINT reports_conversation_unique DO NOTHING
	`,
		rec.ID, rec.ReportNumber, rec.Status, rec.SenderKey, rec.ConversationNonce,
		rec.ObservationType, rec.ClassificationCode, rec.ClassificationName,
		rec.Location, rec.Severity, rec.StopWork, rec.BreachSource, rec.ControlMeasure,
		rec.Reference, rec.ResponsiblePerson, rec.ImageKey, rec.ImageURL,
		rec.ImageCapturedAt,
	)
	if err != nil {
		return Record{}, false, err
	}

	if tag.RowsAffected() == 0 {
		// Replay of an already-finalized conversation.
		existing, err := r.getByConversation(ctx, rec.SenderKey, rec.ConversationNonce)
		if err != nil {
			return Record{}, false, err
		}
		return existing, false, nil
	}

	if err := tx.QueryRow(ctx, `
		SELECT completed_at FROM reports WHERE id = $1
	`, rec.ID).Scan(&rec.CompletedAt); err != nil {
		return Record{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, false, err
	}

	return rec, true, nil
}

func (r *Repository) getByConversation(ctx context.Context, senderKey string, nonce uuid.UUID) (Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx, `
		SELECT id, report_number, status, sender_key, conversation_nonce,
		       observation_type, classification_code, classification_name,
		       location, severity, stop_work, breach_source, control_measure,
		       reference, responsible_person, image_key, image_url,
		       image_captured_at, completed_at
		FROM reports
		WHERE sender_key = $1 AND conversation_nonce = $2
	`, senderKey, nonce).Scan(
		&rec.ID, &rec.ReportNumber, &rec.Status, &rec.SenderKey, &rec.ConversationNonce,
		&rec.ObservationType, &rec.ClassificationCode, &rec.ClassificationName,
		&rec.Location, &rec.Severity, &rec.StopWork, &rec.BreachSource, &rec.ControlMeasure,
		&rec.Reference, &rec.ResponsiblePerson, &rec.ImageKey, &rec.ImageURL,
		&rec.ImageCapturedAt, &rec.CompletedAt,
	)
	return rec, err
}
