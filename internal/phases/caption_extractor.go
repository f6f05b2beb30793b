package phases

import (
	"context"
	"log/slog"

	"github.com/tjfontaine/youtube-reviewer/internal/domain"
	"github.com/tjfontaine/youtube-reviewer/internal/pipeline"
	"github.com/tjfontaine/youtube-reviewer/internal/youtube"
)

// StageCaptionExtractor is the id of the transcript fetch stage.
const StageCaptionExtractor = "caption_extractor"

// TranscriptCache is the transcript cache as seen by the stages.
type TranscriptCache interface {
	Get(ctx context.Context, videoID string) (string, bool)
	Put(ctx context.Context, videoID, captions string)
}

// TranscriptFetcher returns the formatted transcript of a video and stores
// it in the transcript cache.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, videoID string) (string, error)
}

// CaptionExtractor resolves a video URL to its transcript, reading through
// the cache.
//
// Reads VideoURL and KnowledgeLevel; fills VideoID, KnowledgeLevel and
// Captions. An unparseable URL or a failed fetch stops the chain.
type CaptionExtractor struct {
	cache   TranscriptCache
	fetcher TranscriptFetcher
	logger  *slog.Logger
}

// NewCaptionExtractor creates the fetch stage.
func NewCaptionExtractor(cache TranscriptCache, fetcher TranscriptFetcher, logger *slog.Logger) *CaptionExtractor {
	return &CaptionExtractor{
		cache:   cache,
		fetcher: fetcher,
		logger:  logger.With("stage", StageCaptionExtractor),
	}
}

func (s *CaptionExtractor) ID() string { return StageCaptionExtractor }

func (s *CaptionExtractor) Run(ctx context.Context, in *pipeline.Payload) (*pipeline.Payload, error) {
	videoID, ok := youtube.ExtractVideoID(in.VideoURL)
	if !ok {
		s.logger.Warn("invalid video url", "kind", domain.KindInputValidation, "video_url", in.VideoURL)
		return in.Failed("Invalid URL"), nil
	}

	out := in.Clone()
	out.VideoID = videoID
	out.KnowledgeLevel = NormalizeKnowledgeLevel(in.KnowledgeLevel)

	if captions, ok := s.cache.Get(ctx, videoID); ok {
		s.logger.Info("using cached captions", "video_id", videoID)
		out.Captions = captions
		return out, nil
	}

	s.logger.Info("fetching captions", "video_id", videoID)
	captions, err := s.fetcher.Fetch(ctx, videoID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("transcript fetch failed", "kind", domain.KindUpstreamFetch, "video_id", videoID, "error", err)
		return in.Failed("Failed to fetch transcript: " + err.Error()), nil
	}

	out.Captions = captions
	return out, nil
}
