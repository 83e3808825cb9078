package nutrition

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// MalformedResponseError reports model output that could not be turned
// into a MacroEstimate. Snippet carries the start of the offending text
// for diagnostics; Truncated marks payloads that look cut off mid-object.
type MalformedResponseError struct {
	Reason    string
	Snippet   string
	Truncated bool
}

func (e *MalformedResponseError) Error() string {
	if e.Truncated {
		return fmt.Sprintf("malformed model response (possibly truncated): %s", e.Reason)
	}
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}

const snippetLen = 160

// rawEstimate uses pointers so missing and non-numeric fields are both
// detectable: absent keys stay nil, string values fail to unmarshal.
type rawEstimate struct {
	Calories    *float64 `json:"calories"`
	Protein     *float64 `json:"protein"`
	Carbs       *float64 `json:"carbs"`
	Fat         *float64 `json:"fat"`
	Confidence  string   `json:"confidence"`
	Description string   `json:"description"`
}

// Normalize turns raw provider text into a validated MacroEstimate.
// Model output is untrusted: fenced, chatty, or truncated payloads are
// all handled here so callers only ever see an estimate or a
// MalformedResponseError. The function is pure and deterministic.
func Normalize(raw string) (*MacroEstimate, error) {
	candidate := extractCandidate(raw)
	if candidate == "" {
		return nil, &MalformedResponseError{
			Reason:  "no JSON object found in response",
			Snippet: snippet(raw),
		}
	}

	var parsed rawEstimate
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, &MalformedResponseError{
			Reason:    fmt.Sprintf("invalid JSON: %v", err),
			Snippet:   snippet(candidate),
			Truncated: looksTruncated(candidate),
		}
	}

	for name, v := range map[string]*float64{
		"calories": parsed.Calories,
		"protein":  parsed.Protein,
		"carbs":    parsed.Carbs,
		"fat":      parsed.Fat,
	} {
		if v == nil {
			return nil, &MalformedResponseError{
				Reason:  fmt.Sprintf("missing or non-numeric field %q", name),
				Snippet: snippet(candidate),
			}
		}
		if *v < 0 {
			return nil, &MalformedResponseError{
				Reason:  fmt.Sprintf("negative value for %q", name),
				Snippet: snippet(candidate),
			}
		}
	}

	conf := Confidence(strings.ToLower(strings.TrimSpace(parsed.Confidence)))
	if !conf.Valid() {
		return nil, &MalformedResponseError{
			Reason:  fmt.Sprintf("invalid confidence %q", parsed.Confidence),
			Snippet: snippet(candidate),
		}
	}

	return &MacroEstimate{
		Calories:    int(math.Round(*parsed.Calories)),
		Protein:     roundTenth(*parsed.Protein),
		Carbs:       roundTenth(*parsed.Carbs),
		Fat:         roundTenth(*parsed.Fat),
		Confidence:  conf,
		Description: strings.TrimSpace(parsed.Description),
	}, nil
}

// roundTenth rounds to one decimal place, half away from zero. Applied
// identically to every provider so all-zero checks downstream are stable.
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// extractCandidate strips code fences and, if the text still does not
// start with an object, pulls out the first balanced {...} span.
func extractCandidate(raw string) string {
	s := strings.TrimSpace(raw)

	// Leading fence, with or without a language tag. "``json" shows up
	// often enough in model output to be worth tolerating.
	for _, fence := range []string{"```json", "```JSON", "``json", "```"} {
		if strings.HasPrefix(s, fence) {
			s = strings.TrimSpace(s[len(fence):])
			break
		}
	}
	if idx := strings.LastIndex(s, "```"); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}

	if strings.HasPrefix(s, "{") {
		return s
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	// Never closed: return the tail so the parse failure reports truncation.
	return s[start:]
}

// looksTruncated heuristically flags candidates cut off mid-object: no
// closing brace, or a trailing comma where the last value should be.
func looksTruncated(candidate string) bool {
	c := strings.TrimSpace(candidate)
	if !strings.HasSuffix(c, "}") {
		return true
	}
	inner := strings.TrimSpace(strings.TrimSuffix(c, "}"))
	return strings.HasSuffix(inner, ",")
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > snippetLen {
		return s[:snippetLen]
	}
	return s
}
