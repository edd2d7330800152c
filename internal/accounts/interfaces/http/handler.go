package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	accountapp "wecar-diagnosis/internal/accounts/application"
	accounts "wecar-diagnosis/internal/accounts/domain"
	"wecar-diagnosis/internal/audit"
	"wecar-diagnosis/internal/auth"
	"wecar-diagnosis/internal/observability/metrics"
)

// Handler provides signup, login and admin user management endpoints.
type Handler struct {
	service   *accountapp.Service
	auditor   audit.Logger
	jwtSecret string
	jwtTTL    time.Duration
}

// NewHandler constructs a handler. auditor may be nil.
func NewHandler(service *accountapp.Service, auditor audit.Logger, jwtSecret string, jwtTTL time.Duration) (*Handler, error) {
	if service == nil {
		return nil, errors.New("accounts handler: nil service")
	}
	if jwtSecret == "" {
		return nil, errors.New("accounts handler: empty jwt secret")
	}
	if jwtTTL <= 0 {
		jwtTTL = 12 * time.Hour
	}
	return &Handler{service: service, auditor: auditor, jwtSecret: jwtSecret, jwtTTL: jwtTTL}, nil
}

// ServeHTTP handles /api/v1/auth/* and /api/v1/users*.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/auth/register":
		h.requirePost(w, r, h.handleRegister)
	case r.URL.Path == "/api/v1/auth/login":
		h.requirePost(w, r, h.handleLogin)
	case r.URL.Path == "/api/v1/users":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleListUsers(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/users/"):
		h.handleUserSubroute(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) requirePost(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request)) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	next(w, r)
}

type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Role            string `json:"role"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Company         string `json:"company"`
	Position        string `json:"position"`
	Name            string `json:"name"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	user, err := h.service.Register(r.Context(), accountapp.RegisterInput{
		Username:        in.Username,
		Password:        in.Password,
		PasswordConfirm: in.PasswordConfirm,
		Role:            in.Role,
		Email:           in.Email,
		Phone:           in.Phone,
		Company:         in.Company,
		Position:        in.Position,
		Name:            in.Name,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"approved": user.Approved,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	user, err := h.service.Authenticate(r.Context(), in.Username, in.Password)
	if err != nil {
		metrics.IncLogin(metrics.ResultError)
		respondError(w, err)
		return
	}
	role, _ := auth.NormalizeRole(user.Role)
	token, err := auth.IssueJWT(user.ID, role, user.Name, []byte(h.jwtSecret), h.jwtTTL)
	if err != nil {
		metrics.IncLogin(metrics.ResultError)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	metrics.IncLogin(metrics.ResultSuccess)
	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]any{
			"id":   user.ID,
			"role": user.Role,
			"name": user.Name,
		},
	})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if list == nil {
		list = []accounts.User{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) handleUserSubroute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
	parts := strings.Split(path, "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetUser(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodPut:
		h.handleUpdateUser(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDeleteUser(w, r, id)
	case len(parts) == 2 && parts[1] == "approve" && r.Method == http.MethodPost:
		h.handleApproveUser(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request, id int64) {
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type updateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Company  string `json:"company"`
	Position string `json:"position"`
	Name     string `json:"name"`
}

// auditPayload strips the credential before the entry is recorded. The
// audit log keeps only whether a password change was part of the update.
func (in updateUserRequest) auditPayload() map[string]any {
	return map[string]any{
		"username":         in.Username,
		"role":             in.Role,
		"email":            in.Email,
		"phone":            in.Phone,
		"company":          in.Company,
		"position":         in.Position,
		"name":             in.Name,
		"password_changed": in.Password != "",
	}
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request, id int64) {
	var in updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	err := h.service.Update(r.Context(), accountapp.UpdateInput{
		ID:       id,
		Username: in.Username,
		Password: in.Password,
		Role:     in.Role,
		Email:    in.Email,
		Phone:    in.Phone,
		Company:  in.Company,
		Position: in.Position,
		Name:     in.Name,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	h.auditAction(r, audit.ActionUpdateUser, id, in.auditPayload())
	respondJSON(w, http.StatusOK, map[string]string{"result": "updated"})
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	h.auditAction(r, audit.ActionDeleteUser, id, nil)
	w.WriteHeader(http.StatusNoContent)
}

type approveRequest struct {
	Approved bool `json:"approved"`
}

func (h *Handler) handleApproveUser(w http.ResponseWriter, r *http.Request, id int64) {
	in := approveRequest{Approved: true}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
	}
	if err := h.service.Approve(r.Context(), id, in.Approved); err != nil {
		respondError(w, err)
		return
	}
	h.auditAction(r, audit.ActionApproveUser, id, in)
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "approved": in.Approved})
}

func (h *Handler) auditAction(r *http.Request, action string, userID int64, payload any) {
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
		ResourceType: "user",
		ResourceID:   strconv.FormatInt(userID, 10),
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
	case errors.Is(err, accounts.ErrUserNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	case errors.Is(err, accounts.ErrUsernameTaken):
		http.Error(w, "username already taken", http.StatusConflict)
	case errors.Is(err, accounts.ErrInvalidCredentials):
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, accounts.ErrNotApproved):
		http.Error(w, "account pending approval", http.StatusForbidden)
	case errors.Is(err, accounts.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
