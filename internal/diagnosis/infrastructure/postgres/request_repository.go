package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	diagnosis "wecar-diagnosis/internal/diagnosis/domain"
)

// RequestRepository persists diagnosis requests, items and responses.
type RequestRepository struct {
	db *sql.DB
}

// NewRequestRepository constructs a repository.
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `r.id, r.applicant_id, COALESCE(a.name,''), r.request_date,
	COALESCE(r.vehicle_number,''), COALESCE(r.lot_number,''), COALESCE(r.parking_number,''),
	r.status, r.evaluator_id, COALESCE(ev.name, r.evaluator_name, ''),
	r.answer_date, r.confirmed_at, COALESCE(r.translated_summary,''), r.translated_at,
	r.sent_at, r.fee`

const requestJoins = `
FROM diagnosis_requests r
LEFT JOIN users a ON r.applicant_id = a.id
LEFT JOIN users ev ON r.evaluator_id = ev.id`

// Create inserts a request with its line items in one transaction.
func (r *RequestRepository) Create(ctx context.Context, req *diagnosis.Request, items []diagnosis.Item) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("request repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO diagnosis_requests (applicant_id, vehicle_number, lot_number, parking_number, status, fee)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id`,
		req.ApplicantID, req.VehicleNumber, req.LotNumber, req.ParkingNumber, string(diagnosis.StatusSubmitted), req.Fee,
	).Scan(&id)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
INSERT INTO diagnosis_request_items (diagnosis_id, sequence, content)
VALUES ($1,$2,$3)`,
			id, item.Sequence, item.Content)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetByID fetches one request with display names resolved.
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*diagnosis.Request, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("request repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+requestColumns+requestJoins+` WHERE r.id = $1`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, diagnosis.ErrNotFound
	}
	return req, err
}

// List returns requests newest first, optionally filtered.
func (r *RequestRepository) List(ctx context.Context, filter diagnosis.ListFilter) ([]diagnosis.Request, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("request repo: nil db")
	}
	var conditions []string
	var args []any
	if filter.ApplicantID != 0 {
		args = append(args, filter.ApplicantID)
		conditions = append(conditions, "r.applicant_id = $"+strconv.Itoa(len(args)))
	}
	if filter.EvaluatorID != 0 {
		args = append(args, filter.EvaluatorID)
		conditions = append(conditions, "r.evaluator_id = $"+strconv.Itoa(len(args)))
	}
	if filter.StartDate != "" {
		args = append(args, filter.StartDate)
		conditions = append(conditions, "r.request_date::date >= $"+strconv.Itoa(len(args)))
	}
	if filter.EndDate != "" {
		args = append(args, filter.EndDate)
		conditions = append(conditions, "r.request_date::date <= $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + requestColumns + requestJoins
	if len(conditions) > 0 {
		query += "\nWHERE " + strings.Join(conditions, " AND ")
	}
	query += "\nORDER BY r.request_date DESC, r.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []diagnosis.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// ListItems returns a request's line items in sequence order.
func (r *RequestRepository) ListItems(ctx context.Context, requestID int64) ([]diagnosis.Item, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("request repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, diagnosis_id, sequence, content, created_at
FROM diagnosis_request_items
WHERE diagnosis_id = $1
ORDER BY sequence`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []diagnosis.Item
	for rows.Next() {
		var item diagnosis.Item
		if err := rows.Scan(&item.ID, &item.RequestID, &item.Sequence, &item.Content, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListResponseDetails returns the saved answers in sequence order.
func (r *RequestRepository) ListResponseDetails(ctx context.Context, requestID int64) ([]diagnosis.ResponseDetail, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("request repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, diagnosis_id, responder_id, sequence, content, COALESCE(note,''), created_at, updated_at
FROM diagnosis_response_details
WHERE diagnosis_id = $1
ORDER BY sequence`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []diagnosis.ResponseDetail
	for rows.Next() {
		var d diagnosis.ResponseDetail
		if err := rows.Scan(&d.ID, &d.RequestID, &d.ResponderID, &d.Sequence, &d.Content, &d.Note, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// UpsertResponseDetail writes one answer keyed by (request, sequence).
func (r *RequestRepository) UpsertResponseDetail(ctx context.Context, d diagnosis.ResponseDetail) error {
	if r == nil || r.db == nil {
		return errors.New("request repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO diagnosis_response_details (diagnosis_id, responder_id, sequence, content, note)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (diagnosis_id, sequence)
DO UPDATE SET responder_id = EXCLUDED.responder_id,
	content = EXCLUDED.content,
	note = EXCLUDED.note,
	updated_at = now()`,
		d.RequestID, d.ResponderID, d.Sequence, d.Content, d.Note)
	return err
}

// UpdateItemContent rewrites one line item (admin edit path).
func (r *RequestRepository) UpdateItemContent(ctx context.Context, requestID int64, sequence int, content string) error {
	if r == nil || r.db == nil {
		return errors.New("request repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE diagnosis_request_items SET content = $1
WHERE diagnosis_id = $2 AND sequence = $3`,
		content, requestID, sequence)
	return err
}

// SetAssignment records the evaluator and moves the request to 평가사배정.
// Last write wins when two assignments race; the storage engine's
// per-statement atomicity is the only guard.
func (r *RequestRepository) SetAssignment(ctx context.Context, requestID int64, evaluatorID *int64, evaluatorName string) error {
	if r == nil || r.db == nil {
		return errors.New("request repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE diagnosis_requests
SET evaluator_id = $1, evaluator_name = $2, status = $3
WHERE id = $4`,
		evaluatorID, evaluatorName, string(diagnosis.StatusAssigned), requestID)
	if err != nil {
		return err
	}
	return ensureOneRow(result)
}

// SetAnswered stamps the answer date and moves the request to 답변완료.
func (r *RequestRepository) SetAnswered(ctx context.Context, requestID int64, answeredAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("request repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE diagnosis_requests
SET status = $1, answer_date = $2
WHERE id = $3`,
		string(diagnosis.StatusAnswered), answeredAt, requestID)
	if err != nil {
		return err
	}
	return ensureOneRow(result)
}

// SetConfirmed stamps the evaluator's confirmation time.
func (r *RequestRepository) SetConfirmed(ctx context.Context, requestID int64, confirmedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("request repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE diagnosis_requests SET confirmed_at = $1 WHERE id = $2`,
		confirmedAt, requestID)
	if err != nil {
		return err
	}
	return ensureOneRow(result)
}

// SetTranslated stores the translated summary.
func (r *RequestRepository) SetTranslated(ctx context.Context, requestID int64, summary string, translatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("request repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE diagnosis_requests
SET translated_summary = $1, translated_at = $2
WHERE id = $3`,
		summary, translatedAt, requestID)
	if err != nil {
		return err
	}
	return ensureOneRow(result)
}

// SetSent stamps delivery and moves the request to 전송완료.
func (r *RequestRepository) SetSent(ctx context.Context, requestID int64, sentAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("request repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE diagnosis_requests
SET status = $1, sent_at = $2
WHERE id = $3`,
		string(diagnosis.StatusSent), sentAt, requestID)
	if err != nil {
		return err
	}
	return ensureOneRow(result)
}

func ensureOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return diagnosis.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*diagnosis.Request, error) {
	var req diagnosis.Request
	var status string
	var evaluatorID sql.NullInt64
	var answerDate, confirmedAt, translatedAt, sentAt sql.NullTime
	err := row.Scan(
		&req.ID, &req.ApplicantID, &req.ApplicantName, &req.RequestDate,
		&req.VehicleNumber, &req.LotNumber, &req.ParkingNumber,
		&status, &evaluatorID, &req.EvaluatorName,
		&answerDate, &confirmedAt, &req.Translated, &translatedAt,
		&sentAt, &req.Fee,
	)
	if err != nil {
		return nil, err
	}
	req.Status = diagnosis.Status(status)
	if evaluatorID.Valid {
		id := evaluatorID.Int64
		req.EvaluatorID = &id
	}
	req.AnswerDate = nullTimePtr(answerDate)
	req.ConfirmedAt = nullTimePtr(confirmedAt)
	req.TranslatedAt = nullTimePtr(translatedAt)
	req.SentAt = nullTimePtr(sentAt)
	return &req, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}

