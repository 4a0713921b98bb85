package scenes

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-server/internal/models"
)

func TestSplit(t *testing.T) {
	t.Run("five paragraphs map one to one", func(t *testing.T) {
		prompt := "A knight rides out.\n\nHe meets a dragon.\n\nThey talk.\n\nThey become friends.\n\nThe kingdom rejoices."
		got, err := Split(prompt)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"A knight rides out.",
			"He meets a dragon.",
			"They talk.",
			"They become friends.",
			"The kingdom rejoices.",
		}, got)
	})

	t.Run("seven paragraphs are grouped contiguously", func(t *testing.T) {
		prompt := "p1\n\np2\n\np3\n\np4\n\np5\n\np6\n\np7"
		got, err := Split(prompt)
		require.NoError(t, err)
		assert.Equal(t, []string{"p1\n\np2", "p3\n\np4", "p5", "p6", "p7"}, got)
	})

	t.Run("falls back to sentences when paragraphs are few", func(t *testing.T) {
		prompt := "One. Two! Three? Four. Five. Six.\n\nSeven."
		got, err := Split(prompt)
		require.NoError(t, err)
		assert.Equal(t, []string{"One. Two!", "Three? Four.", "Five.", "Six.", "Seven."}, got)
	})

	t.Run("falls back to words for a single sentence", func(t *testing.T) {
		got, err := Split("a brave little mouse saves the entire village")
		require.NoError(t, err)
		assert.Equal(t, []string{"a brave", "little mouse", "saves the", "entire", "village"}, got)
	})

	t.Run("exactly five words", func(t *testing.T) {
		got, err := Split("  one two three four five  ")
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two", "three", "four", "five"}, got)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := Split("just four words here")
		assert.ErrorIs(t, err, models.ErrPromptTooShort)

		_, err = Split("   ")
		assert.ErrorIs(t, err, models.ErrPromptTooShort)
	})

	t.Run("decimal points do not split sentences", func(t *testing.T) {
		got := splitSentences("It cost 3.50 coins. Then it rained.")
		assert.Equal(t, []string{"It cost 3.50 coins.", "Then it rained."}, got)
	})
}

func TestSplit_AlwaysFiveNonEmpty(t *testing.T) {
	prompts := []string{
		strings.Repeat("The wind howled over the silent hills while the old lighthouse keeper lit his lamp. ", 4),
		"Once upon a time there was a cat.\n\nIt was orange.",
		"word " + strings.Repeat("and ", 40) + "end",
		"Sentence one is here. Sentence two follows! Does three ask? Four ends. Five closes. Six lingers. Seven, eight, nine.",
		"Первая сцена. Вторая сцена. Третья сцена. Четвертая сцена. Пятая сцена.",
		"\n\n\nA\n\n\n\nB\n\nC D E F",
	}

	for _, prompt := range prompts {
		got, err := Split(prompt)
		require.NoError(t, err, prompt)
		require.Len(t, got, Count, prompt)
		for i, scene := range got {
			assert.NotEmpty(t, strings.TrimSpace(scene), "scene %d of %q", i, prompt)
		}

		again, err := Split(prompt)
		require.NoError(t, err)
		assert.Equal(t, got, again, "split must be deterministic")
	}
}

func TestImagePrompt(t *testing.T) {
	const suffix = ", digital art"

	t.Run("short scene kept whole", func(t *testing.T) {
		assert.Equal(t, "A knight at dawn, digital art", ImagePrompt("A knight\nat   dawn", suffix))
	})

	t.Run("long scene truncated to 100 runes", func(t *testing.T) {
		scene := strings.Repeat("ж", 150)
		got := ImagePrompt(scene, suffix)
		assert.True(t, strings.HasSuffix(got, suffix))
		assert.Equal(t, 100, utf8.RuneCountInString(strings.TrimSuffix(got, suffix)))
	})
}
