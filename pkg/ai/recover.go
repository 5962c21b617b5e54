package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dtnitsch/second-look/models"
)

var (
	// ErrNoJSON means no balanced JSON object could be found in the output.
	ErrNoJSON = errors.New("ai: no JSON object in response")
	// ErrInvalidJSON means the recovered span did not decode.
	ErrInvalidJSON = errors.New("ai: invalid JSON in response")
)

// RecoverJSON returns the first balanced {...} span in text. Braces inside
// JSON strings are ignored, so chatter and markdown fences around the object
// do not matter.
func RecoverJSON(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := matchBrace(text, start); ok {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index of the brace closing the one at start.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false

	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// stripFences removes a surrounding ```json ... ``` block.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// ParseAnalysis decodes model output into an Analysis. A bare array of
// matches, as older prompts produced, is accepted too.
func ParseAnalysis(text string) (models.Analysis, error) {
	var a models.Analysis

	if body := stripFences(text); strings.HasPrefix(body, "[") {
		var matches []models.DuplicateMatch
		if err := json.Unmarshal([]byte(body), &matches); err == nil {
			a.Duplicates = matches
			return clean(a), nil
		}
	}

	span, ok := RecoverJSON(text)
	if !ok {
		return models.Analysis{}, ErrNoJSON
	}
	if err := json.Unmarshal([]byte(span), &a); err != nil {
		return models.Analysis{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return clean(a), nil
}

// clean drops entries the sidebar cannot render.
func clean(a models.Analysis) models.Analysis {
	dups := make([]models.DuplicateMatch, 0, len(a.Duplicates))
	for _, d := range a.Duplicates {
		if strings.TrimSpace(d.CartItem) != "" {
			dups = append(dups, d)
		}
	}
	a.Duplicates = dups

	insights := make([]models.MarketInsight, 0, len(a.MarketInsights))
	for _, m := range a.MarketInsights {
		if strings.TrimSpace(m.Company) != "" {
			insights = append(insights, m)
		}
	}
	a.MarketInsights = insights
	return a
}
