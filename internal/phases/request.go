package phases

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/tjfontaine/youtube-reviewer/internal/models"
	"github.com/tjfontaine/youtube-reviewer/internal/pipeline"
)

// Request is the initial client message of a phase session. Each phase
// reads only the fields it needs.
type Request struct {
	VideoURL       string                 `json:"video_url,omitempty"`
	KnowledgeLevel string                 `json:"knowledge_level,omitempty"`
	VideoID        string                 `json:"video_id,omitempty"`
	KeyConcepts    []models.KeyConcept    `json:"key_concepts,omitempty"`
	Thesis         string                 `json:"thesis,omitempty"`
	ArgumentChains []models.ArgumentChain `json:"argument_chains,omitempty"`
	Connections    []models.Connection    `json:"connections,omitempty"`
	Claims         []models.Claim         `json:"claims,omitempty"`
}

// DecodeRequest parses the initial client message. Only malformed JSON or a
// value that is not an object is an error. A field of the wrong type is
// left empty and named in dropped, so Validate treats a mistyped required
// field as missing.
func DecodeRequest(data []byte) (req *Request, dropped string, err error) {
	req = &Request{}
	err = json.Unmarshal(data, req)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		// Unmarshal keeps decoding past type mismatches and reports the first.
		dropped, _, _ = strings.Cut(typeErr.Field, ".")
		return req, dropped, nil
	}
	if err != nil {
		return nil, "", err
	}
	return req, "", nil
}

// MissingFieldError reports a request without a field its phase requires.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return e.Field + " is required"
}

// CloseReason is the close-frame reason text, e.g. "video_url required".
func (e *MissingFieldError) CloseReason() string {
	return e.Field + " required"
}

// Validate checks that r carries what phase p requires.
func (r *Request) Validate(p Phase) error {
	switch p {
	case KeyConcepts:
		if strings.TrimSpace(r.VideoURL) == "" {
			return &MissingFieldError{Field: "video_url"}
		}
	case ThesisArgument:
		if strings.TrimSpace(r.VideoID) == "" {
			return &MissingFieldError{Field: "video_id"}
		}
	case Connections:
		if len(r.KeyConcepts) == 0 {
			return &MissingFieldError{Field: "key_concepts"}
		}
	case ClaimVerification:
		if strings.TrimSpace(r.Thesis) == "" && len(r.ArgumentChains) == 0 && len(r.Claims) == 0 {
			return &MissingFieldError{Field: "thesis, argument_chains or claims"}
		}
	case Quiz:
		if len(r.KeyConcepts) == 0 && strings.TrimSpace(r.Thesis) == "" {
			return &MissingFieldError{Field: "key_concepts or thesis"}
		}
	}
	return nil
}

// Payload converts r into the pipeline input.
func (r *Request) Payload() *pipeline.Payload {
	return &pipeline.Payload{
		VideoURL:       strings.TrimSpace(r.VideoURL),
		VideoID:        strings.TrimSpace(r.VideoID),
		KnowledgeLevel: r.KnowledgeLevel,
		KeyConcepts:    r.KeyConcepts,
		Thesis:         r.Thesis,
		ArgumentChains: r.ArgumentChains,
		Connections:    r.Connections,
		Claims:         r.Claims,
	}
}
