package diagnosis

import "time"

// DefaultFee is the fee recorded on a new request, in KRW.
const DefaultFee = 120000

// Request is a vehicle diagnosis request and its workflow state.
type Request struct {
	ID            int64      `json:"id"`
	ApplicantID   int64      `json:"applicant_id"`
	ApplicantName string     `json:"applicant_name,omitempty"`
	RequestDate   time.Time  `json:"request_date"`
	VehicleNumber string     `json:"vehicle_number,omitempty"`
	LotNumber     string     `json:"lot_number,omitempty"`
	ParkingNumber string     `json:"parking_number,omitempty"`
	Status        Status     `json:"status"`
	EvaluatorID   *int64     `json:"evaluator_id,omitempty"`
	EvaluatorName string     `json:"evaluator_name,omitempty"`
	AnswerDate    *time.Time `json:"answer_date,omitempty"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	Translated    string     `json:"translated_summary,omitempty"`
	TranslatedAt  *time.Time `json:"translated_at,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	Fee           int        `json:"fee"`
}

// Item is one numbered line of a request, created at submission.
type Item struct {
	ID        int64     `json:"id"`
	RequestID int64     `json:"request_id"`
	Sequence  int       `json:"sequence"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ResponseDetail is the evaluator's answer for one item sequence.
// At most one detail exists per (request, sequence).
type ResponseDetail struct {
	ID          int64     `json:"id"`
	RequestID   int64     `json:"request_id"`
	ResponderID int64     `json:"responder_id"`
	Sequence    int       `json:"sequence"`
	Content     string    `json:"content"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListFilter narrows request listings. Dates are inclusive YYYY-MM-DD
// bounds against the request date.
type ListFilter struct {
	ApplicantID int64
	EvaluatorID int64
	StartDate   string
	EndDate     string
}
