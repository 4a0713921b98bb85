package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"story-server/internal/models"
)

func newJWT(t *testing.T) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier("test-secret", "story-server", zap.NewNop())
	require.NoError(t, err)
	return v
}

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := newJWT(t)
	token, err := v.IssueToken("uid-1", "a@b.c", true, time.Minute)
	require.NoError(t, err)

	identity, err := v.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", identity.UID)
	assert.Equal(t, "a@b.c", identity.Email)
	assert.True(t, identity.IsAdmin)
	assert.Equal(t, ProviderJWT, identity.Provider)
}

func TestJWTVerifier_Rejections(t *testing.T) {
	v := newJWT(t)

	expired, err := v.IssueToken("uid-1", "", false, -time.Minute)
	require.NoError(t, err)
	_, err = v.VerifyToken(context.Background(), expired)
	assert.ErrorIs(t, err, models.ErrTokenExpired)

	other, err := NewJWTVerifier("other-secret", "story-server", zap.NewNop())
	require.NoError(t, err)
	foreign, err := other.IssueToken("uid-1", "", false, time.Minute)
	require.NoError(t, err)
	_, err = v.VerifyToken(context.Background(), foreign)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	wrongIssuer, err := NewJWTVerifier("test-secret", "someone-else", zap.NewNop())
	require.NoError(t, err)
	token, err := wrongIssuer.IssueToken("uid-1", "", false, time.Minute)
	require.NoError(t, err)
	_, err = v.VerifyToken(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "story-server",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	signed, err := noSubject.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = v.VerifyToken(context.Background(), signed)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	_, err = v.VerifyToken(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestNewJWTVerifier_EmptySecret(t *testing.T) {
	_, err := NewJWTVerifier("", "", nil)
	assert.Error(t, err)
}

type stubVerifier struct {
	identity *models.Identity
	err      error
	calls    int
}

func (s *stubVerifier) VerifyToken(ctx context.Context, token string) (*models.Identity, error) {
	s.calls++
	return s.identity, s.err
}

func TestChainVerifier(t *testing.T) {
	ok := &stubVerifier{identity: &models.Identity{UID: "u", Provider: "second"}}
	bad := &stubVerifier{err: models.ErrTokenInvalid}

	chain, err := NewChainVerifier(zap.NewNop(), bad, nil, ok)
	require.NoError(t, err)

	identity, err := chain.VerifyToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "second", identity.Provider)
	assert.Equal(t, 1, bad.calls)

	_, err = chain.VerifyToken(context.Background(), "  ")
	assert.ErrorIs(t, err, models.ErrTokenMissing)

	expired := &stubVerifier{err: models.ErrTokenExpired}
	chain, err = NewChainVerifier(zap.NewNop(), expired, bad)
	require.NoError(t, err)
	_, err = chain.VerifyToken(context.Background(), "tok")
	assert.ErrorIs(t, err, models.ErrTokenExpired)

	chain, err = NewChainVerifier(zap.NewNop(), bad)
	require.NoError(t, err)
	_, err = chain.VerifyToken(context.Background(), "tok")
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	_, err = NewChainVerifier(zap.NewNop(), nil)
	assert.Error(t, err)
}

type mockFirebaseClient struct {
	mock.Mock
}

func (m *mockFirebaseClient) VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error) {
	args := m.Called(ctx, idToken)
	tok, _ := args.Get(0).(*fbauth.Token)
	return tok, args.Error(1)
}

func (m *mockFirebaseClient) UpdateUser(ctx context.Context, uid string, user *fbauth.UserToUpdate) (*fbauth.UserRecord, error) {
	args := m.Called(ctx, uid, user)
	rec, _ := args.Get(0).(*fbauth.UserRecord)
	return rec, args.Error(1)
}

func (m *mockFirebaseClient) GetUser(ctx context.Context, uid string) (*fbauth.UserRecord, error) {
	args := m.Called(ctx, uid)
	rec, _ := args.Get(0).(*fbauth.UserRecord)
	return rec, args.Error(1)
}

func (m *mockFirebaseClient) DeleteUser(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

func (m *mockFirebaseClient) SetCustomUserClaims(ctx context.Context, uid string, claims map[string]interface{}) error {
	return m.Called(ctx, uid, claims).Error(0)
}

func TestFirebaseVerifier(t *testing.T) {
	client := new(mockFirebaseClient)
	client.On("VerifyIDToken", mock.Anything, "good").Return(&fbauth.Token{
		UID:    "fb-uid",
		Claims: map[string]interface{}{"email": "x@y.z", "admin": true},
	}, nil)
	client.On("VerifyIDToken", mock.Anything, "bad").Return(nil, errors.New("signature mismatch"))

	v := NewFirebaseVerifier(client, zap.NewNop())

	identity, err := v.VerifyToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "fb-uid", identity.UID)
	assert.Equal(t, "x@y.z", identity.Email)
	assert.True(t, identity.IsAdmin)
	assert.Equal(t, ProviderFirebase, identity.Provider)

	_, err = v.VerifyToken(context.Background(), "bad")
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
	client.AssertExpectations(t)
}

func TestFirebaseDirectory(t *testing.T) {
	client := new(mockFirebaseClient)
	client.On("UpdateUser", mock.Anything, "uid-1", mock.AnythingOfType("*auth.UserToUpdate")).Return(&fbauth.UserRecord{}, nil)
	client.On("SetCustomUserClaims", mock.Anything, "uid-1", map[string]interface{}{"admin": true}).Return(nil)
	client.On("DeleteUser", mock.Anything, "uid-1").Return(nil)
	client.On("DeleteUser", mock.Anything, "uid-2").Return(errors.New("backend unavailable"))

	d := NewFirebaseDirectory(client, zap.NewNop())
	require.NoError(t, d.SetDisabled(context.Background(), "uid-1", true))
	require.NoError(t, d.SetAdmin(context.Background(), "uid-1", true))
	require.NoError(t, d.Delete(context.Background(), "uid-1"))
	assert.Error(t, d.Delete(context.Background(), "uid-2"))
	client.AssertExpectations(t)
}

func TestFirebaseDirectory_IsAdmin(t *testing.T) {
	client := new(mockFirebaseClient)
	client.On("GetUser", mock.Anything, "claimed").Return(&fbauth.UserRecord{
		CustomClaims: map[string]interface{}{"admin": true},
	}, nil)
	client.On("GetUser", mock.Anything, "plain").Return(&fbauth.UserRecord{}, nil)
	client.On("GetUser", mock.Anything, "broken").Return(nil, errors.New("backend unavailable"))

	d := NewFirebaseDirectory(client, zap.NewNop())

	admin, err := d.IsAdmin(context.Background(), "claimed")
	require.NoError(t, err)
	assert.True(t, admin)

	admin, err = d.IsAdmin(context.Background(), "plain")
	require.NoError(t, err)
	assert.False(t, admin)

	_, err = d.IsAdmin(context.Background(), "broken")
	assert.Error(t, err)
	client.AssertExpectations(t)
}

func TestLocalDirectory(t *testing.T) {
	d := NewLocalDirectory(zap.NewNop())
	assert.NoError(t, d.SetDisabled(context.Background(), "u", true))
	assert.NoError(t, d.SetAdmin(context.Background(), "u", true))
	assert.NoError(t, d.Delete(context.Background(), "u"))
	admin, err := d.IsAdmin(context.Background(), "u")
	assert.NoError(t, err)
	assert.False(t, admin)
}
