// Package scenes splits a story prompt into a fixed number of narrative scenes.
package scenes

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"story-server/internal/models"
)

// Count is the number of scenes every story is split into.
const Count = 5

// maxImagePromptRunes bounds how much of a scene goes into the image prompt.
const maxImagePromptRunes = 100

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Split partitions prompt into exactly Count non-empty scenes.
// Paragraphs are preferred, then sentences, then words. Units are grouped
// into contiguous, evenly sized chunks so that the result is deterministic.
func Split(prompt string) ([]string, error) {
	text := strings.TrimSpace(prompt)

	if paragraphs := nonEmpty(paragraphBreak.Split(text, -1)); len(paragraphs) >= Count {
		return group(paragraphs, "\n\n"), nil
	}
	if sentences := splitSentences(text); len(sentences) >= Count {
		return group(sentences, " "), nil
	}
	if words := strings.Fields(text); len(words) >= Count {
		return group(words, " "), nil
	}
	return nil, models.ErrPromptTooShort
}

// ImagePrompt builds the image generation prompt for a scene.
func ImagePrompt(scene, styleSuffix string) string {
	scene = strings.Join(strings.Fields(scene), " ")
	if utf8.RuneCountInString(scene) > maxImagePromptRunes {
		scene = string([]rune(scene)[:maxImagePromptRunes])
	}
	return scene + styleSuffix
}

// splitSentences cuts after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				out = append(out, string(runes[start:i+1]))
				start = i + 1
			}
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return nonEmpty(out)
}

// group joins units into Count contiguous groups; the first len%Count groups
// get one extra unit. len(units) must be >= Count.
func group(units []string, sep string) []string {
	size, extra := len(units)/Count, len(units)%Count
	out := make([]string, 0, Count)
	pos := 0
	for i := 0; i < Count; i++ {
		n := size
		if i < extra {
			n++
		}
		out = append(out, strings.Join(units[pos:pos+n], sep))
		pos += n
	}
	return out
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
