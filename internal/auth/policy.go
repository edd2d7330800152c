package auth

import (
	"net/http"
	"strings"
)

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredRole resolves the required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method

	switch {
	case path == "/api/v1/users" || strings.HasPrefix(path, "/api/v1/users/"):
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/settlements"):
		return RoleAdmin, true
	case path == "/api/v1/requests" && method == http.MethodPost:
		return RoleApplicant, true
	case path == "/api/v1/requests":
		// Listing is role-scoped inside the handler.
		return "", false
	case strings.HasSuffix(path, "/assign"):
		return RoleEvaluator, true
	case strings.HasSuffix(path, "/response"):
		return RoleEvaluator, true
	case strings.HasSuffix(path, "/confirm"):
		return RoleEvaluator, true
	case strings.HasSuffix(path, "/translate"):
		return RoleAdmin, true
	case strings.HasSuffix(path, "/send"):
		return RoleAdmin, true
	case strings.HasSuffix(path, "/details") && method == http.MethodPut:
		return RoleAdmin, true
	}

	if strings.HasPrefix(path, "/api/") {
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return "", false
		}
		return RoleAdmin, true
	}
	return "", false
}
