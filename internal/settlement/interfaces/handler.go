package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"wecar-diagnosis/internal/audit"
	"wecar-diagnosis/internal/auth"
	settlementapp "wecar-diagnosis/internal/settlement/application"
	settlement "wecar-diagnosis/internal/settlement/domain"
)

// Handler provides settlement HTTP endpoints. All routes are
// admin-only, enforced before the handler runs.
type Handler struct {
	service *settlementapp.Service
	auditor audit.Logger
}

// NewHandler constructs a handler. auditor may be nil.
func NewHandler(service *settlementapp.Service, auditor audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("settlement handler: nil service")
	}
	return &Handler{service: service, auditor: auditor}, nil
}

// ServeHTTP handles /api/v1/settlements and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/settlements":
		switch r.Method {
		case http.MethodGet:
			h.handleAggregate(w, r)
		case http.MethodPost:
			h.handleSave(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case r.URL.Path == "/api/v1/settlements/export.xlsx":
		h.handleLiveExport(w, r, "xlsx")
	case r.URL.Path == "/api/v1/settlements/export.pdf":
		h.handleLiveExport(w, r, "pdf")
	case r.URL.Path == "/api/v1/settlements/snapshots":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleListSnapshots(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/settlements/snapshots/"):
		h.handleSnapshotSubroute(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func parsePeriodQuery(r *http.Request) (int, int, error) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		return 0, 0, errors.New("year is required")
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		return 0, 0, errors.New("month is required")
	}
	return year, month, nil
}

func (h *Handler) handleAggregate(w http.ResponseWriter, r *http.Request) {
	year, month, err := parsePeriodQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	agg, err := h.service.Aggregate(r.Context(), year, month)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agg)
}

type saveRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var in saveRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	snap, err := h.service.SaveSnapshot(r.Context(), in.Year, in.Month)
	if err != nil {
		respondError(w, err)
		return
	}
	h.auditAction(r, audit.ActionSaveSettlement, snap.ID, in)
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":    snap.ID,
		"title": snap.Title,
	})
}

func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListSnapshots(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if list == nil {
		list = []*settlement.Snapshot{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleSnapshotSubroute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/settlements/snapshots/")
	parts := strings.Split(path, "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid snapshot id", http.StatusBadRequest)
		return
	}

	snap, agg, err := h.service.FetchSnapshot(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	switch {
	case len(parts) == 1:
		respondJSON(w, http.StatusOK, map[string]any{
			"snapshot":    snap,
			"aggregation": agg,
		})
	case len(parts) == 2 && parts[1] == "export.xlsx":
		h.serveExport(w, r, agg, snap.Title, "xlsx")
	case len(parts) == 2 && parts[1] == "export.pdf":
		h.serveExport(w, r, agg, snap.Title, "pdf")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleLiveExport(w http.ResponseWriter, r *http.Request, format string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	year, month, err := parsePeriodQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	agg, err := h.service.Aggregate(r.Context(), year, month)
	if err != nil {
		respondError(w, err)
		return
	}
	title := agg.StartDate + "_" + agg.EndDate
	h.serveExport(w, r, agg, title, format)
}

func (h *Handler) serveExport(w http.ResponseWriter, r *http.Request, agg *settlement.Aggregation, title, format string) {
	var (
		data        []byte
		err         error
		contentType string
	)
	switch format {
	case "xlsx":
		data, err = BuildSettlementXLSX(agg)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		data, err = BuildSettlementPDF(agg)
		contentType = "application/pdf"
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	h.auditAction(r, audit.ActionExportSettlement, 0, map[string]string{"title": title, "format": format})
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="settlement_`+title+"."+format+`"`)
	_, _ = w.Write(data)
}

func (h *Handler) auditAction(r *http.Request, action string, snapshotID int64, payload any) {
	if h.auditor == nil {
		return
	}
	var metadata json.RawMessage
	if payload != nil {
		metadata, _ = json.Marshal(payload)
	}
	resourceID := ""
	if snapshotID > 0 {
		resourceID = strconv.FormatInt(snapshotID, 10)
	}
	_ = h.auditor.Log(r.Context(), audit.Entry{
		ActorID:      auth.UserIDFromContext(r.Context()),
		ActorRole:    string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "settlement",
		ResourceID:   resourceID,
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
	case errors.Is(err, settlement.ErrInvalidPeriod):
		http.Error(w, "invalid year/month", http.StatusBadRequest)
	case errors.Is(err, settlement.ErrSnapshotNotFound):
		http.Error(w, "settlement not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
