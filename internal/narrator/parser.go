package narrator

import (
	"encoding/json"
	"fmt"
	"strings"
)

type narrationResponse struct {
	Line string `json:"line"`
}

// maxLineLength caps narration copy so a runaway response never floods a
// notification payload.
const maxLineLength = 140

func ParseResponse(responseBody string) (string, error) {
	cleaned := stripCodeFences(responseBody)

	var resp narrationResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return "", fmt.Errorf("failed to parse JSON response: %w", err)
	}

	line := strings.TrimSpace(resp.Line)
	if line == "" {
		return "", fmt.Errorf("empty narration line")
	}
	if len([]rune(line)) > maxLineLength {
		line = string([]rune(line)[:maxLineLength-1]) + "…"
	}
	return line, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
