package store

import (
	"strings"

	"roofflow/api/internal/domain"
	"roofflow/api/internal/perm"
	"roofflow/api/internal/util"
)

// CreateUser adds a team member. Gated on manage_team.
func (s *Store) CreateUser(actor domain.User, displayName, email, roleID string) (domain.User, error) {
	if err := s.gate(actor, perm.ManageTeam); err != nil {
		return domain.User{}, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || roleID == "" {
		return domain.User{}, ErrInvalidInput
	}

	s.mu.Lock()
	if _, ok := s.roles[roleID]; !ok {
		s.mu.Unlock()
		return domain.User{}, ErrNotFound
	}
	user := domain.User{
		ID:          util.NewID("usr"),
		DisplayName: displayName,
		Email:       email,
		RoleID:      roleID,
		CreatedAt:   s.now(),
	}
	s.users[user.ID] = user
	s.mu.Unlock()
	s.notify()

	s.syncCreate(domain.ColUsers, user.ID, user, func() {
		delete(s.users, user.ID)
	})
	return user, nil
}

// UpdateUser patches display name and role assignment. Gated on manage_team.
func (s *Store) UpdateUser(actor domain.User, id string, displayName, roleID *string) (domain.User, error) {
	if err := s.gate(actor, perm.ManageTeam); err != nil {
		return domain.User{}, err
	}
	if displayName != nil && strings.TrimSpace(*displayName) == "" {
		return domain.User{}, ErrInvalidInput
	}

	s.mu.Lock()
	user, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return domain.User{}, ErrNotFound
	}
	if roleID != nil {
		if _, ok := s.roles[*roleID]; !ok {
			s.mu.Unlock()
			return domain.User{}, ErrNotFound
		}
	}
	prev := user
	fields := map[string]any{}
	if displayName != nil {
		user.DisplayName = strings.TrimSpace(*displayName)
		fields["displayName"] = user.DisplayName
	}
	if roleID != nil {
		user.RoleID = *roleID
		fields["roleId"] = user.RoleID
	}
	s.users[id] = user
	s.mu.Unlock()
	s.notify()

	if len(fields) > 0 {
		s.syncPatch(domain.ColUsers, id, fields, func() {
			s.users[id] = prev
		})
	}
	return user, nil
}

// DeactivateUser soft-deletes a user. The record is retained so ownerId
// references elsewhere never dangle; display layers show inactive owners
// with a placeholder. Gated on manage_team.
func (s *Store) DeactivateUser(actor domain.User, id string) (domain.User, error) {
	if err := s.gate(actor, perm.ManageTeam); err != nil {
		return domain.User{}, err
	}

	s.mu.Lock()
	user, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return domain.User{}, ErrNotFound
	}
	prev := user
	now := s.now()
	user.DeactivatedAt = &now
	s.users[id] = user
	s.mu.Unlock()
	s.notify()

	s.syncPatch(domain.ColUsers, id, map[string]any{"deactivatedAt": now}, func() {
		s.users[id] = prev
	})
	return user, nil
}

// SetUserPassword stores a new credential hash. Ungated: the auth layer
// decides who may change which password and hands over a finished hash.
func (s *Store) SetUserPassword(id, passwordHash string) (domain.User, error) {
	if s.isClosed() {
		return domain.User{}, ErrClosed
	}
	if passwordHash == "" {
		return domain.User{}, ErrInvalidInput
	}

	s.mu.Lock()
	user, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return domain.User{}, ErrNotFound
	}
	prev := user
	user.PasswordHash = passwordHash
	s.users[id] = user
	s.mu.Unlock()
	s.notify()

	s.syncPatch(domain.ColUsers, id, map[string]any{"passwordHash": passwordHash}, func() {
		s.users[id] = prev
	})
	return user, nil
}

// CreateRole adds a role with an explicit permission set. Gated on
// manage_roles. IsSuperAdmin is never settable through this path; only the
// seeded canonical role carries it.
func (s *Store) CreateRole(actor domain.User, name string, codes []perm.Code, parentRoleID string) (domain.Role, error) {
	if err := s.gate(actor, perm.ManageRoles); err != nil {
		return domain.Role{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Role{}, ErrInvalidInput
	}

	role := domain.Role{
		ID:              util.NewID("rl"),
		Name:            name,
		PermissionCodes: codeStrings(codes),
		CreatedAt:       s.now(),
	}

	s.mu.Lock()
	if parentRoleID != "" {
		if _, ok := s.roles[parentRoleID]; !ok {
			s.mu.Unlock()
			return domain.Role{}, ErrNotFound
		}
		parent := parentRoleID
		role.ParentRoleID = &parent
	}
	s.roles[role.ID] = role
	s.mu.Unlock()
	s.notify()

	s.syncCreate(domain.ColRoles, role.ID, role, func() {
		delete(s.roles, role.ID)
	})
	return role, nil
}

// RenameRole changes a role's display name. Gated on manage_roles. Renaming
// a role to "Owner" grants the name-based bypass; see perm.OwnerRoleName.
func (s *Store) RenameRole(actor domain.User, id, name string) (domain.Role, error) {
	if err := s.gate(actor, perm.ManageRoles); err != nil {
		return domain.Role{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Role{}, ErrInvalidInput
	}

	s.mu.Lock()
	role, ok := s.roles[id]
	if !ok {
		s.mu.Unlock()
		return domain.Role{}, ErrNotFound
	}
	prev := role
	role.Name = name
	s.roles[id] = role
	s.mu.Unlock()
	s.notify()

	s.syncPatch(domain.ColRoles, id, map[string]any{"name": name}, func() {
		s.roles[id] = prev
	})
	return role, nil
}

// SetRolePermissions replaces a role's stored permission set. Gated on
// manage_roles. Super-admin roles ignore their stored set either way.
func (s *Store) SetRolePermissions(actor domain.User, id string, codes []perm.Code) (domain.Role, error) {
	if err := s.gate(actor, perm.ManageRoles); err != nil {
		return domain.Role{}, err
	}

	s.mu.Lock()
	role, ok := s.roles[id]
	if !ok {
		s.mu.Unlock()
		return domain.Role{}, ErrNotFound
	}
	prev := role
	role.PermissionCodes = codeStrings(codes)
	s.roles[id] = role
	s.mu.Unlock()
	s.notify()

	s.syncPatch(domain.ColRoles, id, map[string]any{"permissionCodes": role.PermissionCodes}, func() {
		s.roles[id] = prev
	})
	return role, nil
}

// SetRoleParent re-hangs a role in the org chart forest. Cycle-introducing
// edges are rejected. Gated on manage_roles.
func (s *Store) SetRoleParent(actor domain.User, id, parentID string) (domain.Role, error) {
	if err := s.gate(actor, perm.ManageRoles); err != nil {
		return domain.Role{}, err
	}
	if !perm.ValidParent(s.Roles(), id, parentID) {
		return domain.Role{}, ErrInvalidInput
	}

	s.mu.Lock()
	role, ok := s.roles[id]
	if !ok {
		s.mu.Unlock()
		return domain.Role{}, ErrNotFound
	}
	prev := role
	var fieldValue any
	if parentID == "" {
		role.ParentRoleID = nil
		fieldValue = nil
	} else {
		parent := parentID
		role.ParentRoleID = &parent
		fieldValue = parentID
	}
	s.roles[id] = role
	s.mu.Unlock()
	s.notify()

	s.syncPatch(domain.ColRoles, id, map[string]any{"parentRoleId": fieldValue}, func() {
		s.roles[id] = prev
	})
	return role, nil
}

// DeleteRole removes a role no user holds. Gated on manage_roles. Child
// roles are detached to forest roots.
func (s *Store) DeleteRole(actor domain.User, id string) error {
	if err := s.gate(actor, perm.ManageRoles); err != nil {
		return err
	}

	s.mu.Lock()
	role, ok := s.roles[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	for _, u := range s.users {
		if u.RoleID == id && u.Active() {
			s.mu.Unlock()
			return ErrRoleInUse
		}
	}
	detached := make(map[string]domain.Role)
	for childID, child := range s.roles {
		if child.ParentRoleID != nil && *child.ParentRoleID == id {
			detached[childID] = child
			child.ParentRoleID = nil
			s.roles[childID] = child
		}
	}
	delete(s.roles, id)
	s.mu.Unlock()
	s.notify()

	s.syncDelete(domain.ColRoles, id, func() {
		s.roles[id] = role
		for childID, child := range detached {
			s.roles[childID] = child
		}
	})
	for childID := range detached {
		s.syncPatch(domain.ColRoles, childID, map[string]any{"parentRoleId": nil}, nil)
	}
	return nil
}

// SetVision replaces the singleton vision document. Gated on manage_vision.
func (s *Store) SetVision(actor domain.User, vision domain.Vision) error {
	if err := s.gate(actor, perm.ManageVision); err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.vision
	had := s.hasVision
	s.vision = vision
	s.hasVision = true
	s.mu.Unlock()
	s.notify()

	s.syncCreate(domain.ColVision, domain.VisionDocID, vision, func() {
		s.vision = prev
		s.hasVision = had
	})
	return nil
}

// AddFeedback appends free-text product feedback. Never mutated afterwards.
func (s *Store) AddFeedback(userName, page, message string) (domain.FeedbackItem, error) {
	if s.isClosed() {
		return domain.FeedbackItem{}, ErrClosed
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.FeedbackItem{}, ErrInvalidInput
	}

	item := domain.FeedbackItem{
		ID:        util.NewID("fb"),
		UserName:  userName,
		Page:      page,
		Message:   message,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.feedback[item.ID] = item
	s.mu.Unlock()
	s.notify()

	s.syncCreate(domain.ColFeedback, item.ID, item, func() {
		delete(s.feedback, item.ID)
	})
	return item, nil
}

func codeStrings(codes []perm.Code) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, string(c))
	}
	return out
}
