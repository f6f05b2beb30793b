// Package phases wires the concrete stages into one pipeline per analysis
// phase and validates phase requests.
package phases

import (
	"strconv"
	"strings"
)

// Phase identifies an independently invocable analysis step.
type Phase int

const (
	KeyConcepts Phase = iota + 1
	ThesisArgument
	Connections
	ClaimVerification
	Quiz
)

// All lists every phase in order.
var All = []Phase{KeyConcepts, ThesisArgument, Connections, ClaimVerification, Quiz}

var phaseNames = map[Phase]string{
	KeyConcepts:       "key_concepts",
	ThesisArgument:    "thesis_argument",
	Connections:       "connections",
	ClaimVerification: "claim_verification",
	Quiz:              "quiz",
}

// String returns the phase name, e.g. "key_concepts".
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "phase_" + strconv.Itoa(int(p))
}

// Slug returns the URL form of the name, e.g. "key-concepts".
func (p Phase) Slug() string {
	return strings.ReplaceAll(p.String(), "_", "-")
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	_, ok := phaseNames[p]
	return ok
}

// ParsePhase accepts a phase number ("1"), name ("key_concepts") or slug
// ("key-concepts").
func ParsePhase(s string) (Phase, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		p := Phase(n)
		return p, p.Valid()
	}
	for p, name := range phaseNames {
		if s == name || s == strings.ReplaceAll(name, "_", "-") {
			return p, true
		}
	}
	return 0, false
}
