// Package response turns raw completion text into typed results. Parse
// handles the text level (fences, JSON, refusals); Map checks the decoded
// value against the contract of one use case.
package response

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vbonduro/domeok/internal/domain"
)

var fence = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]+?)\\s*```")

// refusalKey is the field a model sets instead of answering.
const refusalKey = "error"

// Parse decodes a completion reply. If the text contains a fenced block only
// the first block's content is decoded. An object carrying an "error" key is
// reported as a refusal before any shape checks run.
func Parse(raw string) (any, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, domain.NewError(domain.KindEmptyResponse, "completion service returned an empty reply")
	}

	if m := fence.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, domain.WrapError(domain.KindDecode, fmt.Sprintf("failed to parse reply: %v", err), err)
	}

	if obj, ok := v.(map[string]any); ok {
		if reason, found := obj[refusalKey]; found {
			return nil, domain.NewError(domain.KindRefusal, refusalDetail(reason))
		}
	}
	return v, nil
}

func refusalDetail(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
