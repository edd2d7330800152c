package auth

// Role represents a user role.
type Role string

const (
	// RoleApplicant submits diagnosis requests. Stored as 진단신청.
	RoleApplicant Role = "진단신청"
	// RoleEvaluator answers assigned requests. Stored as 평가사.
	RoleEvaluator Role = "평가사"
	// RoleAdmin reviews, translates, sends and settles. Stored as 관리자.
	RoleAdmin Role = "관리자"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleApplicant, RoleEvaluator, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleSatisfies returns true when role can perform an operation that
// requires the given role. Roles are not ordered; an administrator may
// act in any role's place.
func RoleSatisfies(role Role, required Role) bool {
	if role == RoleAdmin {
		return true
	}
	return role == required
}
