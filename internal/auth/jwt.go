package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"story-server/internal/models"
)

// ProviderJWT names identities issued by the local HS256 verifier.
const ProviderJWT = "jwt"

// Claims are the fields of a locally issued token. Subject carries the uid.
type Claims struct {
	Email string `json:"email,omitempty"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier проверяет HS256-токены, подписанные общим секретом.
type JWTVerifier struct {
	secret []byte
	issuer string
	logger *zap.Logger
}

// NewJWTVerifier создает новый экземпляр JWTVerifier.
func NewJWTVerifier(secret, issuer string, logger *zap.Logger) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTVerifier{
		secret: []byte(secret),
		issuer: issuer,
		logger: logger.Named("JWTVerifier"),
	}, nil
}

// VerifyToken проверяет подпись, срок действия и issuer.
func (v *JWTVerifier) VerifyToken(ctx context.Context, tokenString string) (identity *models.Identity, err error) {
	defer func() { observe(ProviderJWT, err) }()
	log := v.logger.With(zap.String("tokenSnippet", tokenSnippet(tokenString)))

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		log.Debug("Failed to parse or verify token", zap.Error(err))
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", models.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, models.ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject missing", models.ErrTokenInvalid)
	}

	return &models.Identity{
		UID:      claims.Subject,
		Email:    claims.Email,
		IsAdmin:  claims.Admin,
		Provider: ProviderJWT,
	}, nil
}

// IssueToken подписывает токен для uid. Используется storyctl и тестами.
func (v *JWTVerifier) IssueToken(uid, email string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
