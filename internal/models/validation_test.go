package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTitle(t *testing.T) {
	v, err := ValidateTitle("  The Lighthouse  ")
	require.NoError(t, err)
	assert.Equal(t, "The Lighthouse", v)

	for _, bad := range []string{"", "   ", "ab", strings.Repeat("x", 201)} {
		_, err := ValidateTitle(bad)
		assert.ErrorIs(t, err, ErrValidation, "title %q", bad)
	}
}

func TestValidatePrompt(t *testing.T) {
	v, err := ValidatePrompt(" one two three four five ")
	require.NoError(t, err)
	assert.Equal(t, "one two three four five", v)

	_, err = ValidatePrompt("one two three four")
	require.Error(t, err)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "text_prompt", ve.Field)

	_, err = ValidatePrompt("short")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ValidatePrompt(strings.Repeat("word ", 201))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateReason(t *testing.T) {
	_, err := ValidateReason("spamming all the comments")
	require.NoError(t, err)

	_, err = ValidateReason("spamming!!!!!")
	assert.ErrorIs(t, err, ErrValidation, "needs three words")

	_, err = ValidateReason("a b c")
	assert.ErrorIs(t, err, ErrValidation, "too short")
}

func TestValidateReview(t *testing.T) {
	fb, err := ValidateReview(5, nil)
	require.NoError(t, err)
	assert.Nil(t, fb)

	blank := "   "
	fb, err = ValidateReview(3, &blank)
	require.NoError(t, err)
	assert.Nil(t, fb)

	good := "  Lovely illustrations  "
	fb, err = ValidateReview(4, &good)
	require.NoError(t, err)
	require.NotNil(t, fb)
	assert.Equal(t, "Lovely illustrations", *fb)

	short := "meh"
	_, err = ValidateReview(4, &short)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ValidateReview(0, nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ValidateReview(6, nil)
	assert.ErrorIs(t, err, ErrValidation)
}
