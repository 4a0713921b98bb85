package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"story-server/internal/auth"
	"story-server/internal/models"
)

func run(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSplitCmd_FromArgument(t *testing.T) {
	out, err := run(t, SplitCmd(), "",
		"One. Two is here. Three goes on. Four is near. Five ends it.")
	require.NoError(t, err)
	assert.Contains(t, out, "scene 0:")
	assert.Contains(t, out, "scene 4:")
	assert.NotContains(t, out, "scene 5:")
	assert.Contains(t, out, "5 scenes")
}

func TestSplitCmd_FromStdinWithStyle(t *testing.T) {
	prompt := "A fox ran.\n\nThe river rose.\n\nNight fell fast.\n\nThe owl called.\n\nMorning came."
	out, err := run(t, SplitCmd(), prompt, "--style", ", watercolor")
	require.NoError(t, err)
	assert.Contains(t, out, "image: A fox ran., watercolor")
	assert.Equal(t, 5, strings.Count(out, "image:"))
}

func TestSplitCmd_RejectsShortPrompt(t *testing.T) {
	_, err := run(t, SplitCmd(), "", "too few words")
	require.Error(t, err)
	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "text_prompt", vErr.Field)
}

func TestTokenCmd_IssuesVerifiableToken(t *testing.T) {
	t.Setenv("AUTH_PROVIDER", "jwt")
	t.Setenv("JWT_SECRET", "cli-test-secret")
	t.Setenv("JWT_ISSUER", "storyctl-test")

	out, err := run(t, TokenCmd(), "", "user-42", "--email", "u42@example.com", "--admin", "--ttl", "5m")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.NotEmpty(t, token)

	verifier, err := auth.NewJWTVerifier("cli-test-secret", "storyctl-test", zap.NewNop())
	require.NoError(t, err)
	identity, err := verifier.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", identity.UID)
	assert.Equal(t, "u42@example.com", identity.Email)
	assert.True(t, identity.IsAdmin)
}

func TestTokenCmd_ExpiredTTL(t *testing.T) {
	t.Setenv("AUTH_PROVIDER", "jwt")
	t.Setenv("JWT_SECRET", "cli-test-secret")
	t.Setenv("JWT_ISSUER", "")

	out, err := run(t, TokenCmd(), "", "user-1", "--ttl="+(-time.Minute).String())
	require.NoError(t, err)

	verifier, err := auth.NewJWTVerifier("cli-test-secret", "", zap.NewNop())
	require.NoError(t, err)
	_, err = verifier.VerifyToken(context.Background(), strings.TrimSpace(out))
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestSetAdminCmd_RequiresUID(t *testing.T) {
	_, err := run(t, SetAdminCmd(), "")
	assert.Error(t, err)
}
