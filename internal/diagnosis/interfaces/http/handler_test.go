package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	accounts "wecar-diagnosis/internal/accounts/domain"
	"wecar-diagnosis/internal/auth"
	diagapp "wecar-diagnosis/internal/diagnosis/application"
	diagnosis "wecar-diagnosis/internal/diagnosis/domain"
)

type fixtureRepo struct {
	requests map[int64]*diagnosis.Request
	items    map[int64][]diagnosis.Item
	details  map[int64][]diagnosis.ResponseDetail
}

func (r *fixtureRepo) Create(ctx context.Context, req *diagnosis.Request, items []diagnosis.Item) (int64, error) {
	return 0, nil
}

func (r *fixtureRepo) GetByID(ctx context.Context, id int64) (*diagnosis.Request, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, diagnosis.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (r *fixtureRepo) List(ctx context.Context, filter diagnosis.ListFilter) ([]diagnosis.Request, error) {
	var out []diagnosis.Request
	for _, req := range r.requests {
		out = append(out, *req)
	}
	return out, nil
}

func (r *fixtureRepo) ListItems(ctx context.Context, requestID int64) ([]diagnosis.Item, error) {
	return r.items[requestID], nil
}

func (r *fixtureRepo) ListResponseDetails(ctx context.Context, requestID int64) ([]diagnosis.ResponseDetail, error) {
	return r.details[requestID], nil
}

func (r *fixtureRepo) UpsertResponseDetail(ctx context.Context, d diagnosis.ResponseDetail) error {
	return nil
}

func (r *fixtureRepo) UpdateItemContent(ctx context.Context, requestID int64, sequence int, content string) error {
	return nil
}

func (r *fixtureRepo) SetAssignment(ctx context.Context, requestID int64, evaluatorID *int64, evaluatorName string) error {
	return nil
}

func (r *fixtureRepo) SetAnswered(ctx context.Context, requestID int64, answeredAt time.Time) error {
	return nil
}

func (r *fixtureRepo) SetConfirmed(ctx context.Context, requestID int64, confirmedAt time.Time) error {
	return nil
}

func (r *fixtureRepo) SetTranslated(ctx context.Context, requestID int64, summary string, translatedAt time.Time) error {
	return nil
}

func (r *fixtureRepo) SetSent(ctx context.Context, requestID int64, sentAt time.Time) error {
	return nil
}

type emptyDirectory struct{}

func (emptyDirectory) GetByID(ctx context.Context, id int64) (*accounts.User, error) {
	return nil, accounts.ErrUserNotFound
}

func (emptyDirectory) FindApprovedEvaluatorByID(ctx context.Context, id int64) (*accounts.User, error) {
	return nil, accounts.ErrUserNotFound
}

func (emptyDirectory) FindApprovedEvaluatorByName(ctx context.Context, name string) (*accounts.User, error) {
	return nil, accounts.ErrUserNotFound
}

func newFixtureHandler(t *testing.T) *Handler {
	t.Helper()

	evaluatorID := int64(2)
	repo := &fixtureRepo{
		requests: map[int64]*diagnosis.Request{
			7: {
				ID:            7,
				ApplicantID:   99,
				ApplicantName: "박신청",
				RequestDate:   time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
				VehicleNumber: "12가3456",
				Status:        diagnosis.StatusAnswered,
				EvaluatorID:   &evaluatorID,
				EvaluatorName: "김평가",
				Translated:    "1. Engine noise (severe)",
			},
		},
		items: map[int64][]diagnosis.Item{
			7: {{ID: 1, RequestID: 7, Sequence: 1, Content: "엔진 소음"}},
		},
		details: map[int64][]diagnosis.ResponseDetail{
			7: {{ID: 1, RequestID: 7, ResponderID: 2, Sequence: 1, Content: "점검 필요", Note: "심각"}},
		},
	}
	svc, err := diagapp.NewRequestService(repo, emptyDirectory{}, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewRequestService: %v", err)
	}
	handler, err := NewHandler(svc, nil)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return handler
}

func doAs(handler *Handler, userID int64, role auth.Role, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), userID, role, "tester"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequestExportVisibility(t *testing.T) {
	handler := newFixtureHandler(t)

	cases := []struct {
		name   string
		userID int64
		role   auth.Role
		want   int
	}{
		{"owner applicant", 99, auth.RoleApplicant, http.StatusOK},
		{"other applicant", 5, auth.RoleApplicant, http.StatusForbidden},
		{"assigned evaluator", 2, auth.RoleEvaluator, http.StatusOK},
		{"other evaluator", 8, auth.RoleEvaluator, http.StatusForbidden},
		{"admin", 1, auth.RoleAdmin, http.StatusOK},
	}
	for _, tc := range cases {
		for _, path := range []string{
			"/api/v1/requests/7/export.pdf",
			"/api/v1/requests/7/export.xlsx",
			"/api/v1/requests/7",
		} {
			rec := doAs(handler, tc.userID, tc.role, http.MethodGet, path)
			if rec.Code != tc.want {
				t.Errorf("%s GET %s = %d, want %d", tc.name, path, rec.Code, tc.want)
			}
		}
	}
}

func TestRequestExportPDFContentType(t *testing.T) {
	handler := newFixtureHandler(t)

	rec := doAs(handler, 99, auth.RoleApplicant, http.MethodGet, "/api/v1/requests/7/export.pdf")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %s", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty pdf body")
	}
}

func TestRequestExportXLSXCarriesAnswers(t *testing.T) {
	handler := newFixtureHandler(t)

	rec := doAs(handler, 1, auth.RoleAdmin, http.MethodGet, "/api/v1/requests/7/export.xlsx")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	// Six meta rows, header row 8, first item row 9.
	item, _ := f.GetCellValue("request", "B9")
	if item != "엔진 소음" {
		t.Fatalf("item cell = %q", item)
	}
	answer, _ := f.GetCellValue("request", "C9")
	if answer != "점검 필요" {
		t.Fatalf("answer cell = %q", answer)
	}
	note, _ := f.GetCellValue("request", "D9")
	if note != "심각" {
		t.Fatalf("note cell = %q", note)
	}
}

func TestRequestExportMissingRequest(t *testing.T) {
	handler := newFixtureHandler(t)

	rec := doAs(handler, 1, auth.RoleAdmin, http.MethodGet, "/api/v1/requests/42/export.pdf")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
