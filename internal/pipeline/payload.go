package pipeline

import (
	"github.com/tjfontaine/youtube-reviewer/internal/models"
)

// Payload is the typed data passed between stages. Fields are optional;
// each stage documents which ones it reads and which it fills in.
type Payload struct {
	VideoURL       string                 `json:"video_url,omitempty"`
	VideoID        string                 `json:"video_id,omitempty"`
	KnowledgeLevel string                 `json:"knowledge_level,omitempty"`
	Captions       string                 `json:"captions,omitempty"`
	KeyConcepts    []models.KeyConcept    `json:"key_concepts,omitempty"`
	Thesis         string                 `json:"thesis,omitempty"`
	ArgumentChains []models.ArgumentChain `json:"argument_chains,omitempty"`
	Connections    []models.Connection    `json:"connections,omitempty"`
	Claims         []models.Claim         `json:"claims,omitempty"`

	// Error stops the chain; the run completes with an ErrorResult.
	Error string `json:"-"`

	// Result is the phase's final structured result, set by the last stage.
	Result any `json:"-"`
}

// Clone returns a shallow copy so a stage can derive its output without
// mutating its input.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return &Payload{}
	}
	cp := *p
	return &cp
}

// Failed returns a copy of p that stops the chain with msg.
func (p *Payload) Failed(msg string) *Payload {
	cp := p.Clone()
	cp.Error = msg
	cp.Result = nil
	return cp
}

// ErrorResult is the output of a run stopped by a stage-reported error.
type ErrorResult struct {
	Error string `json:"error"`
}
