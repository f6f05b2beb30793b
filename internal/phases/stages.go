package phases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tjfontaine/youtube-reviewer/internal/analysis"
	"github.com/tjfontaine/youtube-reviewer/internal/models"
	"github.com/tjfontaine/youtube-reviewer/internal/pipeline"
	"github.com/tjfontaine/youtube-reviewer/internal/youtube"
)

// Analysis stage ids.
const (
	StageKeyConcepts    = "key_concepts_extractor"
	StageThesisArgument = "thesis_argument_extractor"
	StageConnections    = "connections_extractor"
	StageClaimVerifier  = "claim_verifier"
	StageQuizGenerator  = "quiz_generator"
)

// analyst runs one structured analysis call and decodes the result.
type analyst struct {
	analyzer analysis.Analyzer
	budget   *analysis.Budget
	logger   *slog.Logger
}

func (a *analyst) analyze(ctx context.Context, instructions, prompt string, schema models.Schema, out models.Validator) error {
	raw, err := a.analyzer.Analyze(ctx, analysis.Request{
		Instructions: instructions,
		Prompt:       prompt,
		Schema:       schema,
	})
	if err != nil {
		return err
	}
	return models.Decode(raw, out)
}

// transcript applies the token budget to captions.
func (a *analyst) transcript(captions string) string {
	fitted, _ := a.budget.Fit(captions)
	return fitted
}

// complete returns out with result set, or the context error when the run
// was cancelled mid-call.
func complete(ctx context.Context, out *pipeline.Payload, result any) (*pipeline.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out.Result = result
	return out, nil
}

// KeyConceptsExtractor produces the phase 1 result from Captions.
type KeyConceptsExtractor struct {
	analyst
}

func (s *KeyConceptsExtractor) ID() string { return StageKeyConcepts }

func (s *KeyConceptsExtractor) Run(ctx context.Context, in *pipeline.Payload) (*pipeline.Payload, error) {
	out := in.Clone()
	if strings.TrimSpace(in.Captions) == "" {
		s.logger.Warn("no captions for key concepts", "video_id", in.VideoID)
		return complete(ctx, out, keyConceptsError(in.VideoID, msgNoCaptions))
	}

	prompt := "VIEWER KNOWLEDGE LEVEL: " + levelGuidance(in.KnowledgeLevel) + "\n\n" +
		"Extract key concepts from the following YouTube video transcript.\n\n" +
		"Transcript:\n" + s.transcript(in.Captions)

	var resp models.KeyConceptsResponse
	if err := s.analyze(ctx, keyConceptsInstructions, prompt, models.KeyConceptsSchema, &resp); err != nil {
		s.logger.Error("key concepts analysis failed", "video_id", in.VideoID, "error", err)
		return complete(ctx, out, keyConceptsError(in.VideoID, msgKeyConceptsFailed))
	}

	resp.VideoID = in.VideoID
	orderConcepts(resp.KeyConcepts)
	s.logger.Info("extracted key concepts", "video_id", in.VideoID, "count", len(resp.KeyConcepts))

	out.KeyConcepts = resp.KeyConcepts
	return complete(ctx, out, &resp)
}

// orderConcepts fills TimestampSeconds and sorts chronologically. Concepts
// without a parseable timestamp keep their relative order at the end.
func orderConcepts(concepts []models.KeyConcept) {
	for i := range concepts {
		if secs, ok := youtube.ParseTimestamp(concepts[i].Timestamp); ok {
			concepts[i].TimestampSeconds = &secs
		}
	}
	sort.SliceStable(concepts, func(i, j int) bool {
		a, b := concepts[i].TimestampSeconds, concepts[j].TimestampSeconds
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}

// ThesisArgumentExtractor produces the phase 2 result from the cached
// transcript of VideoID.
type ThesisArgumentExtractor struct {
	analyst
	cache TranscriptCache
}

func (s *ThesisArgumentExtractor) ID() string { return StageThesisArgument }

func (s *ThesisArgumentExtractor) Run(ctx context.Context, in *pipeline.Payload) (*pipeline.Payload, error) {
	out := in.Clone()

	captions := in.Captions
	if captions == "" {
		cached, ok := s.cache.Get(ctx, in.VideoID)
		if !ok {
			s.logger.Warn("captions not cached", "video_id", in.VideoID)
			return complete(ctx, out, thesisError(msgCaptionsNotCached))
		}
		captions = cached
		out.Captions = cached
	}

	prompt := "Extract the main thesis and all argument chains from the following YouTube video transcript.\n\n" +
		"Provide:\n" +
		"- main_thesis (1-2 sentences)\n" +
		"- argument_chains: for each chain include title, premise, reasoning_steps, conclusion, implications\n\n" +
		"Transcript:\n" + s.transcript(captions)

	var resp models.ThesisArgumentResponse
	if err := s.analyze(ctx, thesisArgumentInstructions, prompt, models.ThesisArgumentSchema, &resp); err != nil {
		s.logger.Error("thesis analysis failed", "video_id", in.VideoID, "error", err)
		return complete(ctx, out, thesisError(msgThesisFailed))
	}

	s.logger.Info("extracted thesis", "video_id", in.VideoID, "argument_chains", len(resp.ArgumentChains))
	out.Thesis = resp.MainThesis
	out.ArgumentChains = resp.ArgumentChains
	return complete(ctx, out, &resp)
}

// ConnectionsExtractor produces the phase 3 result from KeyConcepts.
type ConnectionsExtractor struct {
	analyst
}

func (s *ConnectionsExtractor) ID() string { return StageConnections }

func (s *ConnectionsExtractor) Run(ctx context.Context, in *pipeline.Payload) (*pipeline.Payload, error) {
	out := in.Clone()
	if len(in.KeyConcepts) == 0 {
		s.logger.Warn("no key concepts provided")
		return complete(ctx, out, connectionsError(msgNoKeyConcepts))
	}

	prompt := "Find meaningful connections between these key concepts from a video:\n\n" +
		formatConcepts(in.KeyConcepts) + "\n\n" +
		"Identify relationships and provide a synthesis of how they work together."

	var resp models.ConnectionsResponse
	if err := s.analyze(ctx, connectionsInstructions, prompt, models.ConnectionsSchema, &resp); err != nil {
		s.logger.Error("connections analysis failed", "error", err)
		return complete(ctx, out, connectionsError(msgConnectionsFailed))
	}

	s.logger.Info("found connections", "count", len(resp.Connections))
	out.Connections = resp.Connections
	return complete(ctx, out, &resp)
}

// ClaimVerifier produces the phase 4 result from Thesis, ArgumentChains and
// Claims. Verdicts rely on the analyzer's own knowledge.
type ClaimVerifier struct {
	analyst
}

func (s *ClaimVerifier) ID() string { return StageClaimVerifier }

func (s *ClaimVerifier) Run(ctx context.Context, in *pipeline.Payload) (*pipeline.Payload, error) {
	out := in.Clone()

	var parts []string
	if in.Thesis != "" {
		parts = append(parts, "MAIN THESIS:\n"+in.Thesis)
	}
	if len(in.ArgumentChains) > 0 {
		parts = append(parts, "ARGUMENT CHAINS:\n"+formatChains(in.ArgumentChains, true))
	}
	if claims := formatClaims(in.Claims); claims != "" {
		parts = append(parts, "CLAIMS TO VERIFY:\n"+claims)
	}
	if len(parts) == 0 {
		s.logger.Warn("no claim content provided")
		return complete(ctx, out, claimsError(msgNoClaimContent))
	}

	prompt := "Verify the factual claims made in this video content:\n\n" +
		strings.Join(parts, "\n\n") + "\n\n" +
		"Judge each claim and assess the overall credibility."

	var resp models.ClaimVerificationResponse
	if err := s.analyze(ctx, claimVerifierInstructions, prompt, models.ClaimVerificationSchema, &resp); err != nil {
		s.logger.Error("claim verification failed", "error", err)
		return complete(ctx, out, claimsError(msgClaimsFailed))
	}

	s.logger.Info("verified claims", "count", len(resp.VerifiedClaims), "credibility", resp.OverallCredibility)
	return complete(ctx, out, &resp)
}

// QuizGenerator produces the phase 5 result from whatever earlier phase
// output the client sends back.
type QuizGenerator struct {
	analyst
}

func (s *QuizGenerator) ID() string { return StageQuizGenerator }

func (s *QuizGenerator) Run(ctx context.Context, in *pipeline.Payload) (*pipeline.Payload, error) {
	out := in.Clone()
	if len(in.KeyConcepts) == 0 && in.Thesis == "" {
		s.logger.Warn("no quiz content provided")
		return complete(ctx, out, quizError(msgNoQuizContent))
	}

	var parts []string
	if len(in.KeyConcepts) > 0 {
		parts = append(parts, "KEY CONCEPTS:\n"+formatConcepts(in.KeyConcepts))
	}
	if in.Thesis != "" {
		parts = append(parts, "MAIN THESIS:\n"+in.Thesis)
	}
	if len(in.ArgumentChains) > 0 {
		parts = append(parts, "ARGUMENT CONCLUSIONS:\n"+formatChains(in.ArgumentChains, false))
	}
	if len(in.Connections) > 0 {
		var lines []string
		for _, c := range in.Connections {
			lines = append(lines, fmt.Sprintf("- %s <-> %s: %s", c.ConceptA, c.ConceptB, c.Relationship))
		}
		parts = append(parts, "CONCEPT CONNECTIONS:\n"+strings.Join(lines, "\n"))
	}

	prompt := "Generate a comprehensive quiz to test understanding of this video content:\n\n" +
		strings.Join(parts, "\n\n") + "\n\n" +
		"Create questions that test recall, understanding, and application of these concepts."

	var resp models.QuizResponse
	if err := s.analyze(ctx, quizGeneratorInstructions, prompt, models.QuizSchema, &resp); err != nil {
		s.logger.Error("quiz generation failed", "error", err)
		return complete(ctx, out, quizError(msgQuizFailed))
	}

	s.logger.Info("generated quiz", "questions", len(resp.Questions))
	return complete(ctx, out, &resp)
}

func formatConcepts(concepts []models.KeyConcept) string {
	lines := make([]string, 0, len(concepts))
	for _, c := range concepts {
		term := c.Term
		if term == "" {
			term = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", term, c.Definition))
	}
	return strings.Join(lines, "\n")
}

func formatChains(chains []models.ArgumentChain, detailed bool) string {
	var b strings.Builder
	for i, ch := range chains {
		if i > 0 {
			b.WriteString("\n")
		}
		title := ch.Title
		if title == "" {
			title = "Unnamed"
		}
		if !detailed {
			fmt.Fprintf(&b, "- %s: %s", title, ch.Conclusion)
			continue
		}
		fmt.Fprintf(&b, "- %s\n  premise: %s\n", title, ch.Premise)
		for _, step := range ch.ReasoningSteps {
			fmt.Fprintf(&b, "  step: %s\n", step)
		}
		fmt.Fprintf(&b, "  conclusion: %s", ch.Conclusion)
	}
	return b.String()
}

func formatClaims(claims []models.Claim) string {
	var lines []string
	for _, c := range claims {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		if c.Timestamp != "" {
			lines = append(lines, fmt.Sprintf("- [%s] %s", c.Timestamp, text))
		} else {
			lines = append(lines, "- "+text)
		}
	}
	return strings.Join(lines, "\n")
}
