package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	settlement "wecar-diagnosis/internal/settlement/domain"
)

// Repository gives the settlement context its own view over the
// diagnosis tables plus the saved-snapshot table.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("settlement repo: nil db")
	}
	return &Repository{db: db}, nil
}

// CountAnsweredByDayEvaluator groups answered requests inside
// [start, end) by answer day and evaluator display name. Requests that
// were answered and later sent still count; the answer date is the
// billing event.
func (r *Repository) CountAnsweredByDayEvaluator(ctx context.Context, start, end time.Time) ([]settlement.SourceRow, error) {
	const query = `
SELECT
	to_char(r.answer_date::date, 'YYYY-MM-DD') AS settlement_date,
	COALESCE(r.evaluator_id, 0) AS evaluator_id,
	COALESCE(u.name, r.evaluator_name, '') AS evaluator_name,
	COUNT(*) AS cnt
FROM diagnosis_requests r
LEFT JOIN users u ON u.id = r.evaluator_id
WHERE r.status IN ('답변완료', '전송완료')
	AND r.answer_date >= $1
	AND r.answer_date < $2
GROUP BY r.answer_date::date, COALESCE(r.evaluator_id, 0), COALESCE(u.name, r.evaluator_name, '')
ORDER BY settlement_date ASC, evaluator_name ASC`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []settlement.SourceRow
	for rows.Next() {
		var src settlement.SourceRow
		if err := rows.Scan(&src.Date, &src.EvaluatorID, &src.EvaluatorName, &src.Count); err != nil {
			return nil, err
		}
		result = append(result, src)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SaveSnapshot inserts a frozen settlement payload and returns its id.
func (r *Repository) SaveSnapshot(ctx context.Context, snap *settlement.Snapshot) (int64, error) {
	if snap == nil {
		return 0, settlement.ErrNilSnapshot
	}
	const query = `
INSERT INTO settlements (year, month, title, start_date, end_date, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		snap.Year, snap.Month, snap.Title, snap.StartDate, snap.EndDate, snap.Payload,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetSnapshot fetches one saved settlement by id.
func (r *Repository) GetSnapshot(ctx context.Context, id int64) (*settlement.Snapshot, error) {
	const query = snapshotColumns + ` WHERE id = $1`
	return scanSnapshot(r.db.QueryRowContext(ctx, query, id))
}

// ListSnapshots returns saved settlements, newest first.
func (r *Repository) ListSnapshots(ctx context.Context) ([]*settlement.Snapshot, error) {
	const query = snapshotColumns + ` ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*settlement.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const snapshotColumns = `
SELECT id, year, month, title, start_date, end_date, payload, created_at
FROM settlements`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(scanner rowScanner) (*settlement.Snapshot, error) {
	var snap settlement.Snapshot
	err := scanner.Scan(
		&snap.ID,
		&snap.Year,
		&snap.Month,
		&snap.Title,
		&snap.StartDate,
		&snap.EndDate,
		&snap.Payload,
		&snap.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, settlement.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
