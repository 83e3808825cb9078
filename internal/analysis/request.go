package analysis

// Request is the inbound analysis request. Exactly one of ImageURL and
// Description may stand alone; a description accompanying an image acts
// as a trusted hint. Immutable once admitted by the Gate.
type Request struct {
	UserID      string `json:"user_id" validate:"required,uuid"`
	ImageURL    string `json:"image_url,omitempty" validate:"omitempty,http_url"`
	Description string `json:"description,omitempty"`
}

// Mode names for metrics and event payloads.
const (
	ModeImage = "image"
	ModeText  = "text"
)

// Mode returns the analysis mode the request selects.
func (r *Request) Mode() string {
	if r.ImageURL != "" {
		return ModeImage
	}
	return ModeText
}
