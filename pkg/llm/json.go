package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON document out of a raw model response.
// Models frequently wrap JSON in markdown code fences or add prose around it;
// this finds the outermost object or array and returns it verbatim.
func ExtractJSON(response string) (string, error) {
	cleaned := strings.TrimSpace(response)

	// Strip markdown code fences if present
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	// Locate the outermost JSON object or array
	objStart := strings.Index(cleaned, "{")
	arrStart := strings.Index(cleaned, "[")

	start := objStart
	open, close := "{", "}"
	if start == -1 || (arrStart != -1 && arrStart < objStart) {
		start = arrStart
		open, close = "[", "]"
	}
	if start == -1 {
		return "", fmt.Errorf("no JSON found in response")
	}

	end := strings.LastIndex(cleaned, close)
	if end == -1 || end < start {
		return "", fmt.Errorf("unbalanced JSON in response: found %q without closing %q", open, close)
	}

	return cleaned[start : end+1], nil
}

// ParseJSONResponse extracts and unmarshals a JSON document from a raw model
// response into target.
func ParseJSONResponse(response string, target any) error {
	extracted, err := ExtractJSON(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}
