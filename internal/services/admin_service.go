package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"social-go/internal/models"
	"social-go/internal/storage"
)

// AdminService 提供管理员操作。
type AdminService interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	// DeleteUser hard-deletes a user together with their friend links,
	// event participations and the events they created.
	DeleteUser(ctx context.Context, actorID, userID string) error
	RecentActivities(ctx context.Context, limit int) ([]models.UserActivity, error)
	ReconcileFriends(ctx context.Context) (ReconcileReport, error)
	GrantAdmin(ctx context.Context, email string, isAdmin bool) error
}

type adminService struct {
	db         *gorm.DB
	userRepo   storage.UserRepository
	users      UserService
	friends    FriendService
	activities ActivityService
	logger     *slog.Logger
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	users UserService,
	friends FriendService,
	activities ActivityService,
	logger *slog.Logger,
) AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &adminService{
		db:         db,
		userRepo:   userRepo,
		users:      users,
		friends:    friends,
		activities: activities,
		logger:     logger.With("component", "admin_service"),
	}
}

func (s *adminService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *adminService) DeleteUser(ctx context.Context, actorID, userID string) error {
	if userID == "" {
		return invalid("id", "is required")
	}
	if actorID == userID {
		return fmt.Errorf("delete own account: %w", ErrForbidden)
	}

	var removedEvents int64
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txUserRepo := storage.NewGormUserRepository(tx)
		txFriendRepo := storage.NewGormFriendRepository(tx)
		txEventRepo := storage.NewGormEventRepository(tx)

		if _, err := txUserRepo.GetByIDForUpdate(ctx, userID); err != nil {
			return lookup("get user", err)
		}
		if err := txFriendRepo.DeleteAllFor(ctx, userID); err != nil {
			return remote("delete friend links", err)
		}
		if err := txEventRepo.DeleteParticipationsFor(ctx, userID); err != nil {
			return remote("delete participations", err)
		}
		n, err := txEventRepo.DeleteCreatedBy(ctx, userID)
		if err != nil {
			return remote("delete events", err)
		}
		removedEvents = n
		if err := txUserRepo.Delete(ctx, userID); err != nil {
			return lookup("delete user", err)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}
	s.logger.Warn("user deleted by admin", "actor_id", actorID, "user_id", userID, "events_removed", removedEvents)
	return nil
}

func (s *adminService) RecentActivities(ctx context.Context, limit int) ([]models.UserActivity, error) {
	return s.activities.Recent(ctx, limit)
}

func (s *adminService) ReconcileFriends(ctx context.Context) (ReconcileReport, error) {
	return s.friends.Reconcile(ctx)
}

func (s *adminService) GrantAdmin(ctx context.Context, email string, isAdmin bool) error {
	n, err := s.userRepo.SetAdmin(ctx, email, isAdmin)
	if err != nil {
		return remote("set admin flag", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	s.logger.Info("admin flag changed", "email", email, "is_admin", isAdmin)
	return nil
}
