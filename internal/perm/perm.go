// Package perm resolves effective permissions from the role graph.
package perm

import "roofflow/api/internal/domain"

type Code string

const (
	ManageTeam    Code = "manage_team"
	ManageRoles   Code = "manage_roles"
	ManageVision  Code = "manage_vision"
	RunMeeting    Code = "run_meeting"
	EditScorecard Code = "edit_scorecard"
	ManageTodos   Code = "manage_todos"
	ManageIssues  Code = "manage_issues"
	ManageGoals   Code = "manage_goals"
)

// OwnerRoleName grants a full bypass by display name. This mirrors legacy
// data where the super-admin role was identified by its name; new roles use
// the IsSuperAdmin flag instead.
const OwnerRoleName = "Owner"

// AllCodes lists every permission code, used when seeding role editors.
func AllCodes() []Code {
	return []Code{
		ManageTeam, ManageRoles, ManageVision, RunMeeting,
		EditScorecard, ManageTodos, ManageIssues, ManageGoals,
	}
}

// HasPermission reports whether the acting user may perform the action named
// by code. A user whose role cannot be resolved is denied everything. A role
// flagged IsSuperAdmin, or named exactly "Owner", holds every permission
// regardless of its stored set.
func HasPermission(actor domain.User, roles []domain.Role, code Code) bool {
	role, ok := findRole(roles, actor.RoleID)
	if !ok {
		return false
	}
	if role.IsSuperAdmin || role.Name == OwnerRoleName {
		return true
	}
	for _, c := range role.PermissionCodes {
		if Code(c) == code {
			return true
		}
	}
	return false
}

// ValidParent reports whether parentID is an acceptable parent for roleID:
// the parent must exist (or be empty, detaching the role to a forest root)
// and the edge must not introduce a cycle.
func ValidParent(roles []domain.Role, roleID, parentID string) bool {
	if parentID == "" {
		return true
	}
	if roleID == parentID {
		return false
	}
	if _, ok := findRole(roles, parentID); !ok {
		return false
	}
	// Walk up from the proposed parent; hitting roleID means a cycle.
	seen := map[string]bool{}
	current := parentID
	for current != "" && !seen[current] {
		seen[current] = true
		role, ok := findRole(roles, current)
		if !ok || role.ParentRoleID == nil {
			return true
		}
		current = *role.ParentRoleID
		if current == roleID {
			return false
		}
	}
	return true
}

func findRole(roles []domain.Role, id string) (domain.Role, bool) {
	for _, r := range roles {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Role{}, false
}
