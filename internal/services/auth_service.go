package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/models"
	"social-go/internal/storage"
)

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Name            string `json:"name" validate:"required,min=2,max=100"`
	Email           string `json:"email" validate:"required,looseemail,max=255"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginInput is the sign-in form.
type LoginInput struct {
	Email    string `json:"email" validate:"required,looseemail"`
	Password string `json:"password" validate:"required"`
}

// AuthService 定义了用户认证服务的接口。
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (token string, user *models.User, err error)
	// Logout revokes the token identified by claims until it would have expired.
	Logout(ctx context.Context, claims *auth.Claims) error
}

type authService struct {
	userRepo  storage.UserRepository
	blacklist auth.TokenBlacklist // nil 时注销只在客户端生效
	cfg       config.AuthConfig
	activity  ActivityRecorder
	clock     Clock
	logger    *slog.Logger
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(
	userRepo storage.UserRepository,
	blacklist auth.TokenBlacklist,
	cfg config.AuthConfig,
	activity ActivityRecorder,
	clock Clock,
	logger *slog.Logger,
) AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		userRepo:  userRepo,
		blacklist: blacklist,
		cfg:       cfg,
		activity:  recorderOrNoop(activity),
		clock:     clock,
		logger:    logger.With("component", "auth_service"),
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	_, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, remote("check email", err)
	}

	hashedPassword, err := auth.HashPassword(input.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, invalid("password", "must be at most 72 bytes")
	} else if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	newUser := &models.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		AvatarURL:    DefaultAvatarURL(input.Name),
		Interests:    []string{},
		IsAdmin:      s.cfg.IsAdminEmail(input.Email),
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		// lost a race on the unique email index
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserAlreadyExists
		}
		return nil, remote("create user", err)
	}
	newUser.Friends = []string{}

	s.logger.Info("user registered", "user_id", newUser.ID, "admin", newUser.IsAdmin)
	s.activity.Record(ctx, newUser.ID, models.ActionRegister, "Yeni kullanıcı kaydı: "+newUser.Email)
	return newUser, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (string, *models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateStruct(input); err != nil {
		return "", nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	} else if err != nil {
		return "", nil, remote("find user", err)
	}
	ok, err := auth.VerifyPassword(user.PasswordHash, input.Password)
	if err != nil {
		// 损坏的哈希当作凭证错误处理，但要记录下来
		s.logger.Error("stored password hash unusable", "user_id", user.ID, "error", err)
		return "", nil, ErrInvalidCredentials
	}
	if !ok {
		return "", nil, ErrInvalidCredentials
	}

	// 每次登录都根据配置重新判断管理员身份
	if s.cfg.IsAdminEmail(user.Email) && !user.IsAdmin {
		if err := s.userRepo.UpdateFields(ctx, user.ID, &models.User{IsAdmin: true}, "is_admin"); err != nil {
			return "", nil, remote("promote admin", err)
		}
		user.IsAdmin = true
	}

	token, err := auth.GenerateToken(user.ID, user.Name, user.IsAdmin, s.cfg, s.clock.now())
	if err != nil {
		return "", nil, fmt.Errorf("生成令牌失败: %w", err)
	}

	s.activity.Record(ctx, user.ID, models.ActionLogin, "Kullanıcı giriş yaptı: "+user.Email)
	return token, user, nil
}

func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return invalid("token", "is required")
	}
	if s.blacklist != nil && claims.ID != "" && claims.ExpiresAt != nil {
		if err := s.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return remote("revoke token", err)
		}
	}
	s.activity.Record(ctx, claims.UserID, models.ActionLogout, "Kullanıcı çıkış yaptı")
	return nil
}
