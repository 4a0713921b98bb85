package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Input bounds, counted in characters after trimming.
const (
	TitleMinLen    = 3
	TitleMaxLen    = 200
	PromptMinLen   = 10
	PromptMaxLen   = 1000
	PromptMinWords = 5
	NameMinLen     = 2
	NameMaxLen     = 100
	FeedbackMinLen = 10
	FeedbackMaxLen = 1000
	ReasonMinLen   = 10
	ReasonMaxLen   = 500
	ReasonMinWords = 3
	RatingMin      = 1
	RatingMax      = 5
)

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func checkLength(field, value string, min, max int) (string, error) {
	v := strings.TrimSpace(value)
	n := utf8.RuneCountInString(v)
	if n == 0 {
		return "", NewValidationError(field, "must not be blank")
	}
	if n < min || n > max {
		return "", NewValidationError(field, fmt.Sprintf("must be between %d and %d characters", min, max))
	}
	return v, nil
}

// ValidateTitle returns the trimmed title.
func ValidateTitle(title string) (string, error) {
	return checkLength("title", title, TitleMinLen, TitleMaxLen)
}

// ValidatePrompt returns the trimmed prompt.
func ValidatePrompt(prompt string) (string, error) {
	v, err := checkLength("text_prompt", prompt, PromptMinLen, PromptMaxLen)
	if err != nil {
		return "", err
	}
	if WordCount(v) < PromptMinWords {
		return "", NewValidationError("text_prompt", fmt.Sprintf("must contain at least %d words", PromptMinWords))
	}
	return v, nil
}

// ValidateName returns the trimmed display name.
func ValidateName(name string) (string, error) {
	return checkLength("name", name, NameMinLen, NameMaxLen)
}

// ValidateReason returns the trimmed admin action reason.
func ValidateReason(reason string) (string, error) {
	v, err := checkLength("reason", reason, ReasonMinLen, ReasonMaxLen)
	if err != nil {
		return "", err
	}
	if WordCount(v) < ReasonMinWords {
		return "", NewValidationError("reason", fmt.Sprintf("must contain at least %d words", ReasonMinWords))
	}
	return v, nil
}

// ValidateReview checks the rating and returns the trimmed feedback, nil when empty.
func ValidateReview(rating int, feedback *string) (*string, error) {
	if rating < RatingMin || rating > RatingMax {
		return nil, NewValidationError("rating", fmt.Sprintf("must be between %d and %d", RatingMin, RatingMax))
	}
	if feedback == nil || strings.TrimSpace(*feedback) == "" {
		return nil, nil
	}
	v, err := checkLength("feedback", *feedback, FeedbackMinLen, FeedbackMaxLen)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
