package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"social-go/internal/models"
	"social-go/internal/storage"
)

const searchLimit = 20

// DefaultAvatarURL 根据用户名生成默认头像地址。
func DefaultAvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=3b82f6&color=fff"
}

// UpdateProfileInput carries the editable profile fields. Nil means unchanged.
type UpdateProfileInput struct {
	Name      *string  `json:"name" validate:"omitempty,min=2,max=100"`
	Bio       *string  `json:"bio" validate:"omitempty,max=500"`
	Location  *string  `json:"location" validate:"omitempty,max=255"`
	AvatarURL *string  `json:"avatar" validate:"omitempty,max=512"`
	Interests []string `json:"interests" validate:"omitempty,max=20,dive,min=1,max=50"`
}

// UserService 定义了用户相关服务的接口。
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error)
	// Search matches name, location or any interest, case-insensitively, excluding the caller.
	Search(ctx context.Context, query string, currentUserID string) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type userService struct {
	userRepo   storage.UserRepository
	friendRepo storage.FriendRepository
	logger     *slog.Logger
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo storage.UserRepository, friendRepo storage.FriendRepository, logger *slog.Logger) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{userRepo: userRepo, friendRepo: friendRepo, logger: logger.With("component", "user_service")}
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, lookup(fmt.Sprintf("get user %s", userID), err)
	}
	if err := attachFriends(ctx, s.friendRepo, user); err != nil {
		return nil, remote("load friends", err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error) {
	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
	}
	if input.Interests != nil {
		input.Interests = normalizeInterests(input.Interests)
	}
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	values := &models.User{}
	var columns []string
	if input.Name != nil && *input.Name != "" {
		values.Name = *input.Name
		columns = append(columns, "name")
	}
	if input.Bio != nil {
		values.Bio = strings.TrimSpace(*input.Bio)
		columns = append(columns, "bio")
	}
	if input.Location != nil {
		values.Location = strings.TrimSpace(*input.Location)
		columns = append(columns, "location")
	}
	if input.AvatarURL != nil {
		values.AvatarURL = strings.TrimSpace(*input.AvatarURL)
		columns = append(columns, "avatar_url")
	}
	if input.Interests != nil {
		values.Interests = input.Interests
		columns = append(columns, "interests")
	}

	if len(columns) > 0 {
		if err := s.userRepo.UpdateFields(ctx, userID, values, columns...); err != nil {
			return nil, lookup(fmt.Sprintf("update user %s", userID), err)
		}
		s.logger.Info("profile updated", "user_id", userID, "fields", columns)
	}
	return s.GetProfile(ctx, userID)
}

// normalizeInterests trims tags and drops empty and duplicate ones, keeping order.
func normalizeInterests(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func (s *userService) Search(ctx context.Context, query string, currentUserID string) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.User{}, nil
	}
	users, err := s.userRepo.Search(ctx, query, currentUserID, searchLimit)
	if err != nil {
		return nil, remote("search users", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, remote("list users", err)
	}
	ptrs := make([]*models.User, len(users))
	for i := range users {
		ptrs[i] = &users[i]
	}
	if err := attachFriends(ctx, s.friendRepo, ptrs...); err != nil {
		return nil, remote("load friends", err)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}
