// Package models defines the structured results produced by each analysis
// phase, their JSON schemas, and shape validation.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrShapeMismatch reports an analysis result that does not match the
// expected output shape.
var ErrShapeMismatch = errors.New("analysis result does not match expected shape")

// Validator is implemented by every phase result.
type Validator interface {
	Validate() error
}

// Decode parses raw into v and validates its shape. Any failure is wrapped
// in ErrShapeMismatch.
func Decode(raw []byte, v Validator) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty result", ErrShapeMismatch)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	return nil
}

// KeyConcept is a term introduced in the video.
type KeyConcept struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Relevance  string `json:"relevance"`
	Timestamp  string `json:"timestamp"`
	// TimestampSeconds is Timestamp parsed to an offset, when parseable.
	TimestampSeconds *int `json:"timestamp_seconds,omitempty"`
}

// KeyConceptsResponse is the phase 1 result.
type KeyConceptsResponse struct {
	KeyConcepts []KeyConcept `json:"key_concepts"`
	VideoID     string       `json:"video_id,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Validate checks the key concepts shape.
func (r *KeyConceptsResponse) Validate() error {
	if r.KeyConcepts == nil {
		return errors.New("key_concepts missing")
	}
	for i, c := range r.KeyConcepts {
		if strings.TrimSpace(c.Term) == "" {
			return fmt.Errorf("key_concepts[%d]: term missing", i)
		}
	}
	return nil
}

// ArgumentChain is one line of reasoning in the video.
type ArgumentChain struct {
	Title          string   `json:"title"`
	Premise        string   `json:"premise"`
	ReasoningSteps []string `json:"reasoning_steps"`
	Conclusion     string   `json:"conclusion"`
	Implications   []string `json:"implications"`
}

// ThesisArgumentResponse is the phase 2 result.
type ThesisArgumentResponse struct {
	MainThesis     string          `json:"main_thesis"`
	ArgumentChains []ArgumentChain `json:"argument_chains"`
}

// Validate checks the thesis shape.
func (r *ThesisArgumentResponse) Validate() error {
	if strings.TrimSpace(r.MainThesis) == "" {
		return errors.New("main_thesis missing")
	}
	if r.ArgumentChains == nil {
		return errors.New("argument_chains missing")
	}
	for i, c := range r.ArgumentChains {
		if strings.TrimSpace(c.Title) == "" && strings.TrimSpace(c.Conclusion) == "" {
			return fmt.Errorf("argument_chains[%d]: title and conclusion missing", i)
		}
	}
	return nil
}

// Connection relates two key concepts.
type Connection struct {
	ConceptA     string `json:"concept_a"`
	ConceptB     string `json:"concept_b"`
	Relationship string `json:"relationship"`
}

// ConnectionsResponse is the phase 3 result.
type ConnectionsResponse struct {
	Connections []Connection `json:"connections"`
	Synthesis   string       `json:"synthesis"`
}

// Validate checks the connections shape.
func (r *ConnectionsResponse) Validate() error {
	if r.Connections == nil {
		return errors.New("connections missing")
	}
	for i, c := range r.Connections {
		if c.ConceptA == "" || c.ConceptB == "" {
			return fmt.Errorf("connections[%d]: concept missing", i)
		}
	}
	if strings.TrimSpace(r.Synthesis) == "" {
		return errors.New("synthesis missing")
	}
	return nil
}

// Claim is a factual assertion submitted for verification. It accepts either
// a bare JSON string or an object with a "claim" (or "text") field.
type Claim struct {
	Text      string `json:"claim"`
	Timestamp string `json:"timestamp,omitempty"`
}

// UnmarshalJSON accepts "..." or {"claim": "..."} / {"text": "..."}.
func (c *Claim) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Claim{Text: s}
		return nil
	}
	var obj struct {
		Claim     string `json:"claim"`
		Text      string `json:"text"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	c.Text = obj.Claim
	if c.Text == "" {
		c.Text = obj.Text
	}
	c.Timestamp = obj.Timestamp
	return nil
}

// VerifiedClaim is the verdict for one claim.
type VerifiedClaim struct {
	Claim      string `json:"claim"`
	Verdict    string `json:"verdict"` // supported, disputed, unverifiable, misleading
	Evidence   string `json:"evidence"`
	Confidence string `json:"confidence"` // high, medium, low
}

// ClaimVerificationResponse is the phase 4 result.
type ClaimVerificationResponse struct {
	VerifiedClaims     []VerifiedClaim `json:"verified_claims"`
	OverallCredibility string          `json:"overall_credibility"`
	Summary            string          `json:"summary"`
}

// Validate checks the claim verification shape.
func (r *ClaimVerificationResponse) Validate() error {
	if r.VerifiedClaims == nil {
		return errors.New("verified_claims missing")
	}
	for i, c := range r.VerifiedClaims {
		if c.Claim == "" || c.Verdict == "" {
			return fmt.Errorf("verified_claims[%d]: claim or verdict missing", i)
		}
	}
	if r.OverallCredibility == "" {
		return errors.New("overall_credibility missing")
	}
	return nil
}

// QuizQuestion is one multiple-choice question.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"` // recall, understanding, application
}

// QuizResponse is the phase 5 result.
type QuizResponse struct {
	Questions []QuizQuestion `json:"questions"`
	QuizFocus string         `json:"quiz_focus"`
}

// Validate checks the quiz shape.
func (r *QuizResponse) Validate() error {
	if r.Questions == nil {
		return errors.New("questions missing")
	}
	for i, q := range r.Questions {
		if q.Question == "" {
			return fmt.Errorf("questions[%d]: question missing", i)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("questions[%d]: need at least two options", i)
		}
		found := false
		for _, o := range q.Options {
			if o == q.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("questions[%d]: correct_answer not among options", i)
		}
	}
	return nil
}
