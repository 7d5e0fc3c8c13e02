package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/subnotify/internal/model"
	"github.com/nhle/subnotify/internal/transport"
)

// Batch is one dispatch with its outcome counts.
type Batch struct {
	ID           string    `db:"id"`
	Mode         string    `db:"mode"`
	Server       string    `db:"smtp_server"`
	SenderName   string    `db:"sender_name"`
	Total        int       `db:"total"`
	Success      int       `db:"success"`
	Failed       int       `db:"failed"`
	NoEmail      int       `db:"no_email"`
	DispatchedAt time.Time `db:"dispatched_at"`
}

// Outcome is the recorded result for one recipient of a batch.
type Outcome struct {
	BatchID     string `db:"batch_id"`
	Position    int    `db:"position"`
	TeacherName string `db:"teacher_name"`
	Email       string `db:"email"`
	RowCount    int    `db:"row_count"`
	Status      string `db:"status"`
	Message     string `db:"message"`
}

// Entry is what the workflow hands over after a successful dispatch.
type Entry struct {
	Config  transport.Wire
	Items   []model.PreviewItem
	Results []model.DispatchResult
}

// Record stores a dispatched batch. Results are matched to items by
// teacher name to capture the address and row count that were sent.
func (j *SQLiteJournal) Record(ctx context.Context, e Entry) (Batch, error) {
	byName := make(map[string]model.PreviewItem, len(e.Items))
	for _, item := range e.Items {
		byName[item.TeacherName] = item
	}

	b := Batch{
		ID:           uuid.New().String(),
		Mode:         string(e.Config.Mode),
		Server:       e.Config.Server,
		SenderName:   e.Config.SenderName,
		Total:        len(e.Results),
		DispatchedAt: time.Now().UTC(),
	}
	for _, r := range e.Results {
		switch r.Status {
		case model.StatusSuccess:
			b.Success++
		case model.StatusFailed:
			b.Failed++
		case model.StatusNoEmail:
			b.NoEmail++
		}
	}

	tx, err := j.db.BeginTxx(ctx, nil)
	if err != nil {
		return Batch{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO batches (
			id, mode, smtp_server, sender_name,
			total, success, failed, no_email, dispatched_at
		) VALUES (
			:id, :mode, :smtp_server, :sender_name,
			:total, :success, :failed, :no_email, :dispatched_at
		)`, b)
	if err != nil {
		return Batch{}, fmt.Errorf("inserting batch %s: %w", b.ID, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO outcomes (
			batch_id, position, teacher_name, email, row_count, status, message
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Batch{}, fmt.Errorf("preparing outcome statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range e.Results {
		item := byName[r.TeacherName]
		_, err := stmt.ExecContext(ctx,
			b.ID, i, r.TeacherName, item.Address(), len(item.DataRows),
			string(r.Status), r.Message,
		)
		if err != nil {
			return Batch{}, fmt.Errorf("inserting outcome for %s: %w", r.TeacherName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Batch{}, fmt.Errorf("committing batch %s: %w", b.ID, err)
	}
	return b, nil
}

// Batches returns recorded batches, newest first. A limit of 0 returns
// every batch.
func (j *SQLiteJournal) Batches(ctx context.Context, limit int) ([]Batch, error) {
	query := "SELECT * FROM batches ORDER BY dispatched_at DESC, rowid DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var batches []Batch
	if err := j.db.SelectContext(ctx, &batches, query, args...); err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	return batches, nil
}

// Outcomes returns the recipients of a batch in dispatch order.
func (j *SQLiteJournal) Outcomes(ctx context.Context, batchID string) ([]Outcome, error) {
	var outcomes []Outcome
	err := j.db.SelectContext(ctx, &outcomes,
		"SELECT * FROM outcomes WHERE batch_id = ? ORDER BY position", batchID)
	if err != nil {
		return nil, fmt.Errorf("listing outcomes for batch %s: %w", batchID, err)
	}
	return outcomes, nil
}
