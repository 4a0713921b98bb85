package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"story-server/internal/models"
)

var tokenVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_token_verifications_total",
		Help: "Total number of token verification attempts by provider and status.",
	},
	[]string{"provider", "status"},
)

// TokenVerifier проверяет bearer-токен и возвращает личность вызывающего.
// Ошибки оборачивают ErrTokenInvalid или ErrTokenExpired.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*models.Identity, error)
}

// ChainVerifier пробует провайдеров по порядку и принимает первый успешный.
type ChainVerifier struct {
	verifiers []TokenVerifier
	logger    *zap.Logger
}

// NewChainVerifier создает цепочку из непустых верификаторов.
func NewChainVerifier(logger *zap.Logger, verifiers ...TokenVerifier) (*ChainVerifier, error) {
	chain := &ChainVerifier{logger: logger.Named("ChainVerifier")}
	for _, v := range verifiers {
		if v != nil {
			chain.verifiers = append(chain.verifiers, v)
		}
	}
	if len(chain.verifiers) == 0 {
		return nil, errors.New("at least one token verifier is required")
	}
	return chain, nil
}

// VerifyToken возвращает ErrTokenExpired, если хотя бы один провайдер узнал
// просроченный токен, иначе ErrTokenInvalid.
func (c *ChainVerifier) VerifyToken(ctx context.Context, token string) (*models.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, models.ErrTokenMissing
	}
	var expired error
	for _, v := range c.verifiers {
		identity, err := v.VerifyToken(ctx, token)
		if err == nil {
			return identity, nil
		}
		if errors.Is(err, models.ErrTokenExpired) {
			expired = err
		}
		c.logger.Debug("Verifier rejected token", zap.String("tokenSnippet", tokenSnippet(token)), zap.Error(err))
	}
	if expired != nil {
		return nil, expired
	}
	return nil, fmt.Errorf("%w: no provider accepted the token", models.ErrTokenInvalid)
}

// tokenSnippet возвращает безопасную для логгирования часть токена.
func tokenSnippet(tokenString string) string {
	limit := 15
	if len(tokenString) > limit {
		return tokenString[:limit] + "..."
	}
	return tokenString
}

func observe(provider string, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, models.ErrTokenExpired):
		status = "expired"
	default:
		status = "invalid"
	}
	tokenVerificationsTotal.WithLabelValues(provider, status).Inc()
}
