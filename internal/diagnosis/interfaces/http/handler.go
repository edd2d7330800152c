package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"wecar-diagnosis/internal/audit"
	"wecar-diagnosis/internal/auth"
	diagapp "wecar-diagnosis/internal/diagnosis/application"
	diagnosis "wecar-diagnosis/internal/diagnosis/domain"
)

// Handler provides diagnosis request HTTP endpoints.
type Handler struct {
	service  *diagapp.RequestService
	exporter *Exporter
	auditor  audit.Logger
}

// NewHandler constructs a handler. auditor may be nil.
func NewHandler(service *diagapp.RequestService, auditor audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("diagnosis handler: nil service")
	}
	return &Handler{
		service:  service,
		exporter: NewExporter(service),
		auditor:  auditor,
	}, nil
}

// ServeHTTP handles /api/v1/requests and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/requests":
		switch r.Method {
		case http.MethodPost:
			h.handleSubmit(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case r.URL.Path == "/api/v1/requests/export.xlsx":
		h.exporter.ServeListXLSX(w, r, h.listFilter(r))
	case r.URL.Path == "/api/v1/requests/export.pdf":
		h.exporter.ServeListPDF(w, r, h.listFilter(r))
	case strings.HasPrefix(r.URL.Path, "/api/v1/requests/"):
		h.handleSubroute(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type submitRequest struct {
	VehicleNumber string `json:"vehicle_number"`
	LotNumber     string `json:"lot_number"`
	ParkingNumber string `json:"parking_number"`
	Items         []struct {
		Sequence int    `json:"sequence"`
		Content  string `json:"content"`
	} `json:"items"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var in submitRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	items := make([]diagapp.ItemInput, 0, len(in.Items))
	for _, item := range in.Items {
		items = append(items, diagapp.ItemInput{Sequence: item.Sequence, Content: item.Content})
	}
	id, err := h.service.Submit(r.Context(), diagapp.SubmitInput{
		ApplicantID:   auth.UserIDFromContext(r.Context()),
		VehicleNumber: in.VehicleNumber,
		LotNumber:     in.LotNumber,
		ParkingNumber: in.ParkingNumber,
		Items:         items,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// listFilter scopes listings by role: applicants see their own
// requests, evaluators the ones assigned to them, administrators all.
func (h *Handler) listFilter(r *http.Request) diagnosis.ListFilter {
	filter := diagnosis.ListFilter{
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
	}
	switch auth.RoleFromContext(r.Context()) {
	case auth.RoleApplicant:
		filter.ApplicantID = auth.UserIDFromContext(r.Context())
	case auth.RoleEvaluator:
		filter.EvaluatorID = auth.UserIDFromContext(r.Context())
	}
	return filter
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), h.listFilter(r))
	if err != nil {
		respondError(w, err)
		return
	}
	if list == nil {
		list = []diagnosis.Request{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleSubroute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/requests/")
	parts := strings.Split(path, "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGet(w, r, id)
		return
	}
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "assign":
		h.requirePost(w, r, func() { h.handleAssign(w, r, id) })
	case "response":
		h.requirePost(w, r, func() { h.handleResponse(w, r, id) })
	case "confirm":
		h.requirePost(w, r, func() { h.handleConfirm(w, r, id) })
	case "translate":
		h.requirePost(w, r, func() { h.handleTranslate(w, r, id) })
	case "send":
		h.requirePost(w, r, func() { h.handleSend(w, r, id) })
	case "details":
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleDetails(w, r, id)
	case "export.xlsx":
		h.exporter.ServeRequestXLSX(w, r, id)
	case "export.pdf":
		h.exporter.ServeRequestPDF(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) requirePost(w http.ResponseWriter, r *http.Request, next func()) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	next()
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	req, items, details, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if !canSee(r, req) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"request": req,
		"items":   items,
		"details": details,
	})
}

// canSee applies the listing visibility rule to a single request.
// Exports of a single request go through the same rule.
func canSee(r *http.Request, req *diagnosis.Request) bool {
	switch auth.RoleFromContext(r.Context()) {
	case auth.RoleAdmin:
		return true
	case auth.RoleApplicant:
		return req.ApplicantID == auth.UserIDFromContext(r.Context())
	case auth.RoleEvaluator:
		return req.EvaluatorID != nil && *req.EvaluatorID == auth.UserIDFromContext(r.Context())
	default:
		return false
	}
}

type assignRequest struct {
	EvaluatorID   int64  `json:"evaluator_id"`
	EvaluatorName string `json:"evaluator_name"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request, id int64) {
	var in assignRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	// Evaluators claim requests for themselves; only an admin may
	// assign someone else.
	if auth.RoleFromContext(r.Context()) == auth.RoleEvaluator {
		in.EvaluatorID = auth.UserIDFromContext(r.Context())
		in.EvaluatorName = ""
	}
	if err := h.service.AssignEvaluator(r.Context(), id, in.EvaluatorID, in.EvaluatorName); err != nil {
		respondError(w, err)
		return
	}
	h.auditAction(r, audit.ActionAssignEvaluator, id, in)
	respondJSON(w, http.StatusOK, map[string]string{"status": string(diagnosis.StatusAssigned)})
}

type responseRequest struct {
	Details []struct {
		Sequence int    `json:"sequence"`
		Content  string `json:"content"`
		Note     string `json:"note"`
	} `json:"details"`
}

func (h *Handler) handleResponse(w http.ResponseWriter, r *http.Request, id int64) {
	var in responseRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	details := make([]diagapp.DetailInput, 0, len(in.Details))
	for _, d := range in.Details {
		details = append(details, diagapp.DetailInput{Sequence: d.Sequence, Content: d.Content, Note: d.Note})
	}
	evaluatorID := auth.UserIDFromContext(r.Context())
	if err := h.service.SaveResponse(r.Context(), id, evaluatorID, details); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(diagnosis.StatusAnswered)})
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.service.ConfirmAnswered(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"result": "confirmed"})
}

func (h *Handler) handleTranslate(w http.ResponseWriter, r *http.Request, id int64) {
	translated, err := h.service.Translate(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"translated_summary": translated})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.service.SendResult(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	h.auditAction(r, audit.ActionSendResult, id, nil)
	respondJSON(w, http.StatusOK, map[string]string{"status": string(diagnosis.StatusSent)})
}

type detailsRequest struct {
	Edits []struct {
		Sequence        int     `json:"sequence"`
		ItemContent     *string `json:"item_content"`
		ResponseContent *string `json:"response_content"`
		ResponseNote    string  `json:"response_note"`
	} `json:"edits"`
}

func (h *Handler) handleDetails(w http.ResponseWriter, r *http.Request, id int64) {
	var in detailsRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	edits := make([]diagapp.AdminEditInput, 0, len(in.Edits))
	for _, e := range in.Edits {
		edits = append(edits, diagapp.AdminEditInput{
			Sequence:        e.Sequence,
			ItemContent:     e.ItemContent,
			ResponseContent: e.ResponseContent,
			ResponseNote:    e.ResponseNote,
		})
	}
	actorID := auth.UserIDFromContext(r.Context())
	if err := h.service.AdminUpdateDetails(r.Context(), id, actorID, edits); err != nil {
		respondError(w, err)
		return
	}
	h.auditAction(r, audit.ActionEditDetails, id, in)
	respondJSON(w, http.StatusOK, map[string]string{"result": "updated"})
}

func (h *Handler) auditAction(r *http.Request, action string, requestID int64, payload any) {
	if h.auditor == nil {
		return
	}
	var metadata json.RawMessage
	if payload != nil {
		metadata, _ = json.Marshal(payload)
	}
	_ = h.auditor.Log(r.Context(), audit.Entry{
		ActorID:      auth.UserIDFromContext(r.Context()),
		ActorRole:    string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "diagnosis_request",
		ResourceID:   strconv.FormatInt(requestID, 10),
		Metadata:     metadata,
		IP:           r.RemoteAddr,
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, diagnosis.ErrNotFound):
		http.Error(w, "request not found", http.StatusNotFound)
	case errors.Is(err, diagnosis.ErrEvaluatorNotFound):
		http.Error(w, "평가사를 찾을 수 없습니다", http.StatusUnprocessableEntity)
	case errors.Is(err, diagnosis.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, diagnosis.ErrInvalidTransition), errors.Is(err, diagnosis.ErrPrecondition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, diagnosis.ErrDependency):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
