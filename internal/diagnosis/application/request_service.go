package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	accounts "wecar-diagnosis/internal/accounts/domain"
	diagnosis "wecar-diagnosis/internal/diagnosis/domain"
	"wecar-diagnosis/internal/observability/metrics"
)

// Repository persists requests, items and response details.
type Repository interface {
	Create(ctx context.Context, req *diagnosis.Request, items []diagnosis.Item) (int64, error)
	GetByID(ctx context.Context, id int64) (*diagnosis.Request, error)
	List(ctx context.Context, filter diagnosis.ListFilter) ([]diagnosis.Request, error)
	ListItems(ctx context.Context, requestID int64) ([]diagnosis.Item, error)
	ListResponseDetails(ctx context.Context, requestID int64) ([]diagnosis.ResponseDetail, error)
	UpsertResponseDetail(ctx context.Context, d diagnosis.ResponseDetail) error
	UpdateItemContent(ctx context.Context, requestID int64, sequence int, content string) error
	SetAssignment(ctx context.Context, requestID int64, evaluatorID *int64, evaluatorName string) error
	SetAnswered(ctx context.Context, requestID int64, answeredAt time.Time) error
	SetConfirmed(ctx context.Context, requestID int64, confirmedAt time.Time) error
	SetTranslated(ctx context.Context, requestID int64, summary string, translatedAt time.Time) error
	SetSent(ctx context.Context, requestID int64, sentAt time.Time) error
}

// Directory resolves user accounts for assignment and delivery.
type Directory interface {
	GetByID(ctx context.Context, id int64) (*accounts.User, error)
	FindApprovedEvaluatorByID(ctx context.Context, id int64) (*accounts.User, error)
	FindApprovedEvaluatorByName(ctx context.Context, name string) (*accounts.User, error)
}

// Translator translates text; implementations fall back to the source
// text when the upstream service is unavailable.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Mailer delivers the result email. A nil error means delivered.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// RequestService handles the diagnosis workflow use cases.
type RequestService struct {
	repo       Repository
	directory  Directory
	translator Translator
	mailer     Mailer
	clock      Clock
	logger     *log.Logger
}

// NewRequestService constructs the service.
func NewRequestService(repo Repository, directory Directory, translator Translator, mailer Mailer, clock Clock, logger *log.Logger) (*RequestService, error) {
	if repo == nil {
		return nil, errors.New("request service: nil repository")
	}
	if directory == nil {
		return nil, errors.New("request service: nil directory")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RequestService{
		repo:       repo,
		directory:  directory,
		translator: translator,
		mailer:     mailer,
		clock:      clock,
		logger:     logger,
	}, nil
}

// ItemInput is one submitted line item.
type ItemInput struct {
	Sequence int
	Content  string
}

// SubmitInput carries a new diagnosis request.
type SubmitInput struct {
	ApplicantID   int64
	VehicleNumber string
	LotNumber     string
	ParkingNumber string
	Items         []ItemInput
}

// Submit creates a request in 신청 with its line items.
func (s *RequestService) Submit(ctx context.Context, in SubmitInput) (int64, error) {
	start := s.clock.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveWorkflowOp("submit", result, time.Since(start)) }()

	if in.ApplicantID == 0 {
		result = metrics.ResultError
		return 0, fmt.Errorf("%w: applicant required", diagnosis.ErrValidation)
	}
	items := make([]diagnosis.Item, 0, len(in.Items))
	seen := make(map[int]struct{}, len(in.Items))
	for _, item := range in.Items {
		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		if item.Sequence <= 0 {
			result = metrics.ResultError
			return 0, fmt.Errorf("%w: item sequence must be positive", diagnosis.ErrValidation)
		}
		if _, dup := seen[item.Sequence]; dup {
			result = metrics.ResultError
			return 0, fmt.Errorf("%w: duplicate item sequence %d", diagnosis.ErrValidation, item.Sequence)
		}
		seen[item.Sequence] = struct{}{}
		items = append(items, diagnosis.Item{Sequence: item.Sequence, Content: item.Content})
	}
	if len(items) == 0 {
		result = metrics.ResultError
		return 0, fmt.Errorf("%w: at least one item is required", diagnosis.ErrValidation)
	}

	req := &diagnosis.Request{
		ApplicantID:   in.ApplicantID,
		VehicleNumber: in.VehicleNumber,
		LotNumber:     in.LotNumber,
		ParkingNumber: in.ParkingNumber,
		Status:        diagnosis.StatusSubmitted,
		Fee:           diagnosis.DefaultFee,
	}
	id, err := s.repo.Create(ctx, req, items)
	if err != nil {
		result = metrics.ResultError
		return 0, err
	}
	return id, nil
}

// AssignEvaluator moves 신청 → 평가사배정. An evaluator id must resolve
// to an approved evaluator account; a bare name resolves when it matches
// one, else it is stored as free text. Re-assignment while at 평가사배정
// is last-write-wins.
func (s *RequestService) AssignEvaluator(ctx context.Context, requestID int64, evaluatorID int64, evaluatorName string) error {
	start := s.clock.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveWorkflowOp("assign", result, time.Since(start)) }()

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		result = metrics.ResultError
		return err
	}
	if req.Status != diagnosis.StatusSubmitted && req.Status != diagnosis.StatusAssigned {
		result = metrics.ResultError
		return fmt.Errorf("%w: cannot assign in status %s", diagnosis.ErrInvalidTransition, req.Status)
	}

	var resolvedID *int64
	var displayName string
	switch {
	case evaluatorID != 0:
		user, err := s.directory.FindApprovedEvaluatorByID(ctx, evaluatorID)
		if err != nil || user == nil {
			result = metrics.ResultError
			if err != nil && !errors.Is(err, accounts.ErrUserNotFound) {
				return err
			}
			return diagnosis.ErrEvaluatorNotFound
		}
		resolvedID = &user.ID
		displayName = user.Name
	case strings.TrimSpace(evaluatorName) != "":
		name := strings.TrimSpace(evaluatorName)
		user, err := s.directory.FindApprovedEvaluatorByName(ctx, name)
		if err != nil && !errors.Is(err, accounts.ErrUserNotFound) {
			result = metrics.ResultError
			return err
		}
		if user != nil {
			resolvedID = &user.ID
			displayName = user.Name
		} else {
			displayName = name
		}
	default:
		result = metrics.ResultError
		return fmt.Errorf("%w: evaluator id or name required", diagnosis.ErrValidation)
	}

	if err := s.repo.SetAssignment(ctx, requestID, resolvedID, displayName); err != nil {
		result = metrics.ResultError
		return err
	}
	return nil
}

// DetailInput is one evaluator answer line.
type DetailInput struct {
	Sequence int
	Content  string
	Note     string
}

// SaveResponse upserts answer details and moves 평가사배정 → 답변완료,
// stamping the answer date with the save wall clock. Blank contents are
// skipped without touching the stored row for that sequence.
func (s *RequestService) SaveResponse(ctx context.Context, requestID, evaluatorID int64, details []DetailInput) error {
	start := s.clock.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveWorkflowOp("save_response", result, time.Since(start)) }()

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		result = metrics.ResultError
		return err
	}
	if req.Status == diagnosis.StatusSubmitted {
		result = metrics.ResultError
		return fmt.Errorf("%w: no evaluator assigned", diagnosis.ErrPrecondition)
	}
	if req.Status == diagnosis.StatusSent {
		result = metrics.ResultError
		return fmt.Errorf("%w: result already sent", diagnosis.ErrPrecondition)
	}

	items, err := s.repo.ListItems(ctx, requestID)
	if err != nil {
		result = metrics.ResultError
		return err
	}
	known := make(map[int]struct{}, len(items))
	for _, item := range items {
		known[item.Sequence] = struct{}{}
	}

	saved := 0
	for _, d := range details {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		if _, ok := known[d.Sequence]; !ok {
			result = metrics.ResultError
			return fmt.Errorf("%w: no request item with sequence %d", diagnosis.ErrValidation, d.Sequence)
		}
		err := s.repo.UpsertResponseDetail(ctx, diagnosis.ResponseDetail{
			RequestID:   requestID,
			ResponderID: evaluatorID,
			Sequence:    d.Sequence,
			Content:     d.Content,
			Note:        d.Note,
		})
		if err != nil {
			result = metrics.ResultError
			return err
		}
		saved++
	}
	if saved == 0 {
		result = metrics.ResultError
		return fmt.Errorf("%w: at least one answer is required", diagnosis.ErrValidation)
	}

	if err := s.repo.SetAnswered(ctx, requestID, s.clock.Now()); err != nil {
		result = metrics.ResultError
		return err
	}
	return nil
}

// ConfirmAnswered stamps the evaluator's confirmation; the status must
// have reached 답변완료 and is left unchanged.
func (s *RequestService) ConfirmAnswered(ctx context.Context, requestID int64) error {
	start := s.clock.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveWorkflowOp("confirm", result, time.Since(start)) }()

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		result = metrics.ResultError
		return err
	}
	if !req.Status.AtLeast(diagnosis.StatusAnswered) {
		result = metrics.ResultError
		return fmt.Errorf("%w: request is not answered yet", diagnosis.ErrPrecondition)
	}
	if err := s.repo.SetConfirmed(ctx, requestID, s.clock.Now()); err != nil {
		result = metrics.ResultError
		return err
	}
	return nil
}

// Translate builds the answer summary and stores its translation.
// Translation is best effort: on upstream failure the source text is
// stored unchanged.
func (s *RequestService) Translate(ctx context.Context, requestID int64) (string, error) {
	start := s.clock.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveWorkflowOp("translate", result, time.Since(start)) }()

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		result = metrics.ResultError
		return "", err
	}
	if !req.Status.AtLeast(diagnosis.StatusAnswered) {
		result = metrics.ResultError
		return "", fmt.Errorf("%w: request is not answered yet", diagnosis.ErrPrecondition)
	}
	details, err := s.repo.ListResponseDetails(ctx, requestID)
	if err != nil {
		result = metrics.ResultError
		return "", err
	}
	if len(details) == 0 {
		result = metrics.ResultError
		return "", fmt.Errorf("%w: no answers to translate", diagnosis.ErrPrecondition)
	}

	source := summarizeDetails(details)
	translated := source
	if s.translator != nil {
		translated, err = s.translator.Translate(ctx, source)
		if err != nil {
			s.logger.Printf("translate request %d: %v (keeping source text)", requestID, err)
			translated = source
		}
	}
	if err := s.repo.SetTranslated(ctx, requestID, translated, s.clock.Now()); err != nil {
		result = metrics.ResultError
		return "", err
	}
	return translated, nil
}

// SendResult moves 답변완료 → 전송완료. It requires a non-empty
// translated summary and a resolvable applicant email, and is gated on
// the mailer reporting success. State already committed by earlier
// operations is not rolled back when delivery fails.
func (s *RequestService) SendResult(ctx context.Context, requestID int64) error {
	start := s.clock.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveWorkflowOp("send", result, time.Since(start)) }()

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		result = metrics.ResultError
		return err
	}
	if req.Status != diagnosis.StatusAnswered {
		result = metrics.ResultError
		return fmt.Errorf("%w: cannot send in status %s", diagnosis.ErrInvalidTransition, req.Status)
	}
	if strings.TrimSpace(req.Translated) == "" {
		result = metrics.ResultError
		return fmt.Errorf("%w: translated summary is empty", diagnosis.ErrPrecondition)
	}
	applicant, err := s.directory.GetByID(ctx, req.ApplicantID)
	if err != nil {
		result = metrics.ResultError
		return err
	}
	if strings.TrimSpace(applicant.Email) == "" {
		result = metrics.ResultError
		return fmt.Errorf("%w: applicant has no email address", diagnosis.ErrPrecondition)
	}

	if s.mailer == nil {
		result = metrics.ResultError
		return fmt.Errorf("%w: mailer not configured", diagnosis.ErrDependency)
	}
	subject := fmt.Sprintf("진단 결과 안내 - %s", req.VehicleNumber)
	body := buildResultEmailBody(req)
	if err := s.mailer.Send(ctx, applicant.Email, subject, body); err != nil {
		result = metrics.ResultError
		s.logger.Printf("send result %d: mail delivery failed: %v", requestID, err)
		return fmt.Errorf("%w: mail delivery failed", diagnosis.ErrDependency)
	}

	if err := s.repo.SetSent(ctx, requestID, s.clock.Now()); err != nil {
		result = metrics.ResultError
		return err
	}
	return nil
}

// AdminEditInput carries an administrative direct edit for one sequence.
type AdminEditInput struct {
	Sequence        int
	ItemContent     *string
	ResponseContent *string
	ResponseNote    string
}

// AdminUpdateDetails rewrites item and answer content directly, without
// lifecycle checks. This is the administrative escape hatch; the blank
// no-op rule for answers still applies.
func (s *RequestService) AdminUpdateDetails(ctx context.Context, requestID, actorID int64, edits []AdminEditInput) error {
	start := s.clock.Now()
	result := metrics.ResultSuccess
	defer func() { metrics.ObserveWorkflowOp("admin_edit", result, time.Since(start)) }()

	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		result = metrics.ResultError
		return err
	}
	responderID := actorID
	if req.EvaluatorID != nil {
		responderID = *req.EvaluatorID
	}

	for _, edit := range edits {
		if edit.Sequence <= 0 {
			result = metrics.ResultError
			return fmt.Errorf("%w: sequence must be positive", diagnosis.ErrValidation)
		}
		if edit.ItemContent != nil {
			if err := s.repo.UpdateItemContent(ctx, requestID, edit.Sequence, *edit.ItemContent); err != nil {
				result = metrics.ResultError
				return err
			}
		}
		if edit.ResponseContent != nil && strings.TrimSpace(*edit.ResponseContent) != "" {
			err := s.repo.UpsertResponseDetail(ctx, diagnosis.ResponseDetail{
				RequestID:   requestID,
				ResponderID: responderID,
				Sequence:    edit.Sequence,
				Content:     *edit.ResponseContent,
				Note:        edit.ResponseNote,
			})
			if err != nil {
				result = metrics.ResultError
				return err
			}
		}
	}
	return nil
}

// Get returns a request with its items and answers.
func (s *RequestService) Get(ctx context.Context, requestID int64) (*diagnosis.Request, []diagnosis.Item, []diagnosis.ResponseDetail, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, nil, err
	}
	items, err := s.repo.ListItems(ctx, requestID)
	if err != nil {
		return nil, nil, nil, err
	}
	details, err := s.repo.ListResponseDetails(ctx, requestID)
	if err != nil {
		return nil, nil, nil, err
	}
	return req, items, details, nil
}

// List returns requests for a role-scoped filter.
func (s *RequestService) List(ctx context.Context, filter diagnosis.ListFilter) ([]diagnosis.Request, error) {
	return s.repo.List(ctx, filter)
}

func summarizeDetails(details []diagnosis.ResponseDetail) string {
	var b strings.Builder
	for i, d := range details {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%d. %s", d.Sequence, d.Content))
		if d.Note != "" {
			b.WriteString(" (" + d.Note + ")")
		}
	}
	return b.String()
}

func buildResultEmailBody(req *diagnosis.Request) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	b.WriteString(fmt.Sprintf("<h3>차량 진단 결과 - %s</h3>", req.VehicleNumber))
	b.WriteString("<pre>")
	b.WriteString(req.Translated)
	b.WriteString("</pre>")
	b.WriteString("</body></html>")
	return b.String()
}
