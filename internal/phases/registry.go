package phases

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/youtube-reviewer/internal/analysis"
	"github.com/tjfontaine/youtube-reviewer/internal/pipeline"
)

// Deps are the collaborators shared by every phase pipeline.
type Deps struct {
	Analyzer analysis.Analyzer
	Cache    TranscriptCache
	Fetcher  TranscriptFetcher
	// Budget caps transcript tokens; nil disables truncation.
	Budget *analysis.Budget
	Logger *slog.Logger
}

// Registry holds the pipeline of every phase. Pipelines are built once and
// shared by all sessions.
type Registry struct {
	pipelines map[Phase]*pipeline.Pipeline
}

// NewRegistry builds the five phase pipelines.
func NewRegistry(deps Deps) (*Registry, error) {
	if deps.Analyzer == nil || deps.Cache == nil || deps.Fetcher == nil {
		return nil, errors.New("phases: analyzer, cache and fetcher are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "phases")

	newAnalyst := func(stageID string) analyst {
		return analyst{
			analyzer: deps.Analyzer,
			budget:   deps.Budget,
			logger:   logger.With("stage", stageID),
		}
	}

	r := &Registry{pipelines: map[Phase]*pipeline.Pipeline{
		KeyConcepts: pipeline.New(KeyConcepts.String(),
			func(in *pipeline.Payload, err error) any {
				return keyConceptsError(in.VideoID, msgKeyConceptsFailed)
			},
			NewCaptionExtractor(deps.Cache, deps.Fetcher, logger),
			&KeyConceptsExtractor{analyst: newAnalyst(StageKeyConcepts)},
		),
		ThesisArgument: pipeline.New(ThesisArgument.String(),
			func(*pipeline.Payload, error) any { return thesisError(msgThesisFailed) },
			&ThesisArgumentExtractor{analyst: newAnalyst(StageThesisArgument), cache: deps.Cache},
		),
		Connections: pipeline.New(Connections.String(),
			func(*pipeline.Payload, error) any { return connectionsError(msgConnectionsFailed) },
			&ConnectionsExtractor{analyst: newAnalyst(StageConnections)},
		),
		ClaimVerification: pipeline.New(ClaimVerification.String(),
			func(*pipeline.Payload, error) any { return claimsError(msgClaimsFailed) },
			&ClaimVerifier{analyst: newAnalyst(StageClaimVerifier)},
		),
		Quiz: pipeline.New(Quiz.String(),
			func(*pipeline.Payload, error) any { return quizError(msgQuizFailed) },
			&QuizGenerator{analyst: newAnalyst(StageQuizGenerator)},
		),
	}}

	return r, nil
}

// Pipeline returns the pipeline for p.
func (r *Registry) Pipeline(p Phase) (*pipeline.Pipeline, error) {
	pl, ok := r.pipelines[p]
	if !ok {
		return nil, fmt.Errorf("unknown phase %d", int(p))
	}
	return pl, nil
}
