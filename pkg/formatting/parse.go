package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed means no JSON value of the requested shape was found in a reply.
var ErrParseFailed = errors.New("failed to parse response")

var fence = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// Parse decodes an agent reply into T. Replies are tried as bare JSON, then
// as the first markdown code fence, then as the outermost {...} span so a
// JSON object wrapped in prose is still accepted.
func Parse[T any](reply string) (T, error) {
	var out T
	reply = strings.TrimSpace(reply)

	for _, candidate := range candidates(reply) {
		if json.Unmarshal([]byte(candidate), &out) == nil {
			return out, nil
		}
	}
	return out, fmt.Errorf("%w: %.200s", ErrParseFailed, reply)
}

func candidates(reply string) []string {
	out := []string{reply}
	if m := fence.FindStringSubmatch(reply); m != nil {
		out = append(out, m[1])
	}
	if start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}"); start >= 0 && end > start {
		out = append(out, reply[start:end+1])
	}
	return out
}
