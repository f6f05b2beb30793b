package phases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/tjfontaine/youtube-reviewer/internal/youtube"
)

// FetcherConfig tunes upstream transcript fetching.
type FetcherConfig struct {
	Languages     []string
	Timeout       time.Duration
	MaxConcurrent int64
}

// Fetcher downloads and normalizes transcripts. Concurrent requests for the
// same video share one upstream call, and the number of upstream calls in
// flight is bounded. A completed fetch is written to the cache even when
// every caller has gone.
type Fetcher struct {
	source    youtube.TranscriptSource
	cache     TranscriptCache
	languages []string
	timeout   time.Duration
	sem       *semaphore.Weighted
	group     singleflight.Group
	logger    *slog.Logger
}

// NewFetcher creates a fetcher over source. A nil cache skips storing.
func NewFetcher(source youtube.TranscriptSource, cache TranscriptCache, cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en"}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Fetcher{
		source:    source,
		cache:     cache,
		languages: cfg.Languages,
		timeout:   cfg.Timeout,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		logger:    logger.With("component", "transcript_fetcher"),
	}
}

// Fetch returns the formatted "[HH:MM:SS] text" transcript for videoID.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	ch := f.group.DoChan(videoID, func() (any, error) {
		// The shared call outlives any single caller's cancellation.
		fetchCtx := context.WithoutCancel(ctx)
		if f.timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, f.timeout)
			defer cancel()
		}
		transcript, err := f.fetch(fetchCtx, videoID)
		if err != nil {
			return "", err
		}
		if f.cache != nil {
			f.cache.Put(fetchCtx, videoID, transcript)
		}
		return transcript, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			f.logger.Debug("shared transcript fetch", "video_id", videoID)
		}
		return res.Val.(string), nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, videoID string) (string, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("wait for fetch slot: %w", err)
	}
	defer f.sem.Release(1)

	start := time.Now()
	segments, err := f.source.Fetch(ctx, videoID, f.languages)
	if err != nil {
		return "", err
	}

	transcript := youtube.FormatTranscript(segments)
	f.logger.Info("fetched transcript",
		"video_id", videoID,
		"segments", len(segments),
		"duration", time.Since(start),
	)
	return transcript, nil
}
