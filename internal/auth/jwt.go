package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"social-go/internal/config"
)

const tokenIssuer = "social-go"

// clockSkew 容忍 API 服务器和 chat 服务器之间的时钟偏差。
const clockSkew = 30 * time.Second

var (
	// ErrInvalidToken wraps every parse or signature failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked 表示令牌已通过注销加入黑名单。
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims are the custom JWT claims. The registered "jti" is what logout
// blacklists; "sub" duplicates UserID for standard tooling.
type Claims struct {
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for the user, valid from now for authCfg.JWTExpiry.
func GenerateToken(userID, name string, isAdmin bool, authCfg config.AuthConfig, now time.Time) (string, error) {
	if authCfg.JWTSecretKey == "" {
		return "", errors.New("jwt secret is not configured")
	}
	claims := Claims{
		UserID:  userID,
		Name:    name,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(authCfg.JWTExpiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(authCfg.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("生成 JWT 失败: %w", err)
	}
	return signed, nil
}

// ValidateToken parses tokenString and, when blacklist is non-nil, rejects
// revoked tokens. A blacklist lookup failure rejects the token too.
func ValidateToken(ctx context.Context, tokenString string, jwtKey string, blacklist TokenBlacklist) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(jwtKey), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	if blacklist == nil {
		return claims, nil
	}

	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}
	revoked, err := blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("检查 Token 黑名单失败: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}
