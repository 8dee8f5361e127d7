package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/payflow-app/payflow/internal/notify"
	"github.com/payflow-app/payflow/internal/shared"
)

// Service wraps account management rules. Account mutations notify the IT
// Staff role so the helpdesk sees directory churn.
type Service struct {
	repo     Repository
	router   *notify.Router
	audit    *shared.AuditLogger
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, router *notify.Router, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		router:   router,
		audit:    audit,
		validate: validator.New(),
		logger:   logger,
	}
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// List returns accounts matching the filter.
func (s *Service) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, req)
}

// Create registers an account and notifies IT Staff.
func (s *Service) Create(ctx context.Context, req CreateUserRequest, actorID int64) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	role := shared.Role(req.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", req.Role)
	}

	id, err := s.repo.Create(ctx, User{
		Email:      req.Email,
		Name:       req.Name,
		Role:       role,
		Department: req.Department,
		ManagerID:  req.ManagerID,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.recordAudit(ctx, actorID, "user.create", id, map[string]any{"email": req.Email, "role": req.Role})
	s.routeUserEvent(ctx, notify.EventUserCreated, "Account created",
		fmt.Sprintf("%s (%s, %s) was added to the directory", req.Name, req.Role, req.Department))

	return s.repo.Get(ctx, id)
}

// Update applies partial changes and notifies IT Staff.
func (s *Service) Update(ctx context.Context, id int64, req UpdateUserRequest, actorID int64) (*User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Role != nil {
		role := shared.Role(*req.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q", *req.Role)
		}
		updates["role"] = *req.Role
	}
	if req.Department != nil {
		updates["department"] = *req.Department
	}
	if req.ManagerID != nil {
		updates["manager_id"] = *req.ManagerID
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, id)
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "user.update", id, map[string]any{"fields": len(updates)})
	s.routeUserEvent(ctx, notify.EventUserUpdated, "Account updated",
		fmt.Sprintf("%s's account details changed", user.Name))
	return user, nil
}

// Delete removes the account; its notifications survive with a null owner.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.recordAudit(ctx, actorID, "user.delete", id, map[string]any{"email": user.Email})
	s.routeUserEvent(ctx, notify.EventUserDeleted, "Account removed",
		fmt.Sprintf("%s was removed from the directory", user.Name))
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("record user audit", slog.Any("error", err))
	}
}

func (s *Service) routeUserEvent(ctx context.Context, event notify.Event, title, msg string) {
	if s.router == nil {
		return
	}
	if _, err := s.router.Route(ctx, event, nil, title, msg); err != nil {
		s.logger.Warn("route user event",
			slog.String("event", string(event)),
			slog.Any("error", err),
		)
	}
}
