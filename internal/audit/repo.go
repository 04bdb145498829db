package audit

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB — подмножество *pgxpool.Pool, нужное репозиторию.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repo хранит журнал решений в таблице sync_outcomes.
type Repo struct{ db DB }

func NewRepo(db DB) *Repo { return &Repo{db: db} }

func (r *Repo) Emit(ctx context.Context, e Event) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sync_outcomes (run_id, at, cabinet, order_id, order_number, stage, action, document_id, reason, dry_run)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, e.RunID, e.At, e.Cabinet, e.OrderID, e.OrderNumber, string(e.Stage), string(e.Action), e.DocumentID, e.Reason, e.DryRun)
	return err
}

// ListByOrder возвращает последние записи по номеру заявки (новые сверху).
func (r *Repo) ListByOrder(ctx context.Context, orderNumber string, limit int) ([]Event, error) {
	const q = `SELECT run_id, at, cabinet, order_id, order_number, stage, action, document_id, reason, dry_run
	           FROM sync_outcomes
	           WHERE order_number = $1
	           ORDER BY at DESC, id DESC
	           LIMIT $2`
	rows, err := r.db.Query(ctx, q, orderNumber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e             Event
			stage, action string
		)
		if err := rows.Scan(
			&e.RunID,
			&e.At,
			&e.Cabinet,
			&e.OrderID,
			&e.OrderNumber,
			&stage,
			&action,
			&e.DocumentID,
			&e.Reason,
			&e.DryRun,
		); err != nil {
			return nil, err
		}
		e.Stage, e.Action = Stage(stage), Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
