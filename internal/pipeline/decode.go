package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/optiq-ai/optiq/internal/llm"
)

// decodeJSON parses an inference reply into dst. Models occasionally wrap
// their JSON in markdown fences or prefix it with chatter, so the content is
// trimmed down to the outermost JSON object first. A reply that still does
// not parse is a MalformedResponse backend error, which the retry policy
// treats as transient.
func decodeJSON(content string, dst any) error {
	cleaned := extractJSON(content)
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return &llm.BackendError{Kind: llm.KindMalformedResponse, Provider: "inference", Err: err}
	}
	return nil
}

// extractJSON strips markdown code fences and any prose surrounding the
// first top-level JSON object.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
