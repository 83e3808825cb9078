package nutrition

// Confidence is a provider's self-reported certainty in an estimate.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Valid reports whether c is one of the three known confidence levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return true
	}
	return false
}

// MacroEstimate is the canonical inference result. Calories are whole
// kcal; macros are grams with one decimal place. Constructed once by
// Normalize and never mutated afterwards.
type MacroEstimate struct {
	Calories    int        `json:"calories"`
	Protein     float64    `json:"protein"`
	Carbs       float64    `json:"carbs"`
	Fat         float64    `json:"fat"`
	Confidence  Confidence `json:"confidence"`
	Description string     `json:"description,omitempty"`
}

// IsZero reports whether the estimate carries no nutritional content at
// all. Such a result is treated as "not food" and rejected downstream.
func (e *MacroEstimate) IsZero() bool {
	return e.Calories == 0 && e.Protein == 0 && e.Carbs == 0 && e.Fat == 0
}
