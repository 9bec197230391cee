package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate = validator.New()
	fenceRe  = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\n(.*?)```")

	errNoJSON = errors.New("no JSON object in response")
)

// ExtractJSON returns the first JSON object in text: the body of a fenced
// block if one holds an object, otherwise the first balanced {...} span.
func ExtractJSON(text string) (string, bool) {
	if m := fenceRe.FindStringSubmatch(text); len(m) > 1 {
		body := strings.TrimSpace(m[1])
		if strings.HasPrefix(body, "{") {
			return body, true
		}
	}

	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// StripFence removes a single markdown fence wrapping the whole response.
func StripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) < 2 {
		return text
	}
	body := lines[1]
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// decodeObject extracts, unmarshals and validates a JSON object from text.
func decodeObject(text string, v any) error {
	raw, ok := ExtractJSON(text)
	if !ok {
		return errNoJSON
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid fields: %w", err)
	}
	return nil
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "(none)\n"
	}
	var sb strings.Builder
	for _, it := range items {
		sb.WriteString("- ")
		sb.WriteString(it)
		sb.WriteString("\n")
	}
	return sb.String()
}
