package auth

import (
	"context"
	"log/slog"

	"bizpulse/internal/types"
)

// RoleService changes user roles while keeping at least one admin.
type RoleService struct {
	users  RoleStore
	logger *slog.Logger
}

func NewRoleService(users RoleStore, logger *slog.Logger) *RoleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleService{users: users, logger: logger}
}

// ChangeRole sets the role of targetID on behalf of actor. Admins cannot
// change their own role, and the last admin cannot be demoted.
func (s *RoleService) ChangeRole(ctx context.Context, actor *types.Actor, targetID string, role types.Role) error {
	if actor == nil || !actor.IsAdmin() {
		return types.NewAppError(types.ErrCodePermissionRole, "Unauthorized", nil)
	}
	if targetID == "" || !role.Valid() {
		return types.NewAppError(types.ErrCodeValidationInvalidRole, "Valid userId and role are required", nil)
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.ID == actor.ID {
		return types.NewAppError(types.ErrCodeValidationSelfRoleChange, "Cannot modify current admin session", nil)
	}

	if target.Role == types.RoleAdmin && role == types.RoleUser {
		admins, err := s.users.CountByRole(ctx, types.RoleAdmin)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return types.NewAppError(types.ErrCodeConflictLastAdmin, "At least one admin is required", nil)
		}
	}

	if err := s.users.UpdateRole(ctx, target.ID, role); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user role changed",
		"actor_id", actor.ID,
		"user_id", target.ID,
		"from", string(target.Role),
		"to", string(role),
	)
	return nil
}
