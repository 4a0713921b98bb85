package auth

import (
	"context"
	"fmt"

	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"story-server/internal/models"
)

// ProviderFirebase names identities verified by Firebase Auth.
const ProviderFirebase = "firebase"

// adminClaim is the custom claim set on admin accounts.
const adminClaim = "admin"

// idTokenVerifier is the subset of *auth.Client used for verification.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier проверяет ID-токены Firebase.
type FirebaseVerifier struct {
	client idTokenVerifier
	logger *zap.Logger
}

// NewFirebaseVerifier оборачивает клиент Firebase Auth (обычно *auth.Client).
func NewFirebaseVerifier(client idTokenVerifier, logger *zap.Logger) *FirebaseVerifier {
	return &FirebaseVerifier{client: client, logger: logger.Named("FirebaseVerifier")}
}

func (v *FirebaseVerifier) VerifyToken(ctx context.Context, idToken string) (identity *models.Identity, err error) {
	defer func() { observe(ProviderFirebase, err) }()

	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		v.logger.Debug("Firebase rejected token", zap.String("tokenSnippet", tokenSnippet(idToken)), zap.Error(err))
		if fbauth.IsIDTokenExpired(err) {
			return nil, fmt.Errorf("%w: %v", models.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrTokenInvalid, err)
	}

	identity = &models.Identity{UID: token.UID, Provider: ProviderFirebase}
	if email, ok := token.Claims["email"].(string); ok {
		identity.Email = email
	}
	if admin, ok := token.Claims[adminClaim].(bool); ok {
		identity.IsAdmin = admin
	}
	return identity, nil
}
