package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultBaseURL = "https://www.youtube.com"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) youtube-reviewer/1.0"
	playerMarker   = "ytInitialPlayerResponse"
	maxPageBytes   = 8 << 20
)

var (
	// ErrNoCaptions means the video has no caption track in any requested language.
	ErrNoCaptions = errors.New("no captions available")
	// ErrVideoUnavailable means the video is private, removed, or region locked.
	ErrVideoUnavailable = errors.New("video unavailable")
)

// TranscriptSource fetches the caption segments of a video.
type TranscriptSource interface {
	Fetch(ctx context.Context, videoID string, languages []string) ([]Segment, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different watch-page host.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client is a TranscriptSource that reads caption tracks from the public
// watch page and downloads the timedtext document of the chosen track.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a transcript client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ TranscriptSource = (*Client)(nil)

// playerResponse is the subset of ytInitialPlayerResponse that is read.
type playerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	Captions struct {
		Renderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" for generated captions
}

// Fetch returns the caption segments for videoID in the first available
// language of languages (default "en"). Manually created tracks are
// preferred over generated ones for the same language.
func (c *Client) Fetch(ctx context.Context, videoID string, languages []string) ([]Segment, error) {
	if len(languages) == 0 {
		languages = []string{"en"}
	}

	page, err := c.get(ctx, c.baseURL+"/watch?v="+url.QueryEscape(videoID), languages[0])
	if err != nil {
		return nil, fmt.Errorf("fetch watch page: %w", err)
	}

	player, err := parsePlayerResponse(page)
	if err != nil {
		return nil, err
	}

	if status := player.PlayabilityStatus.Status; status != "" && status != "OK" {
		return nil, fmt.Errorf("%w: %s", ErrVideoUnavailable, player.PlayabilityStatus.Reason)
	}

	track, ok := selectTrack(player.Captions.Renderer.CaptionTracks, languages)
	if !ok {
		return nil, fmt.Errorf("%w for languages %v", ErrNoCaptions, languages)
	}

	trackURL, err := c.resolve(track.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("caption track url: %w", err)
	}

	doc, err := c.get(ctx, trackURL, track.LanguageCode)
	if err != nil {
		return nil, fmt.Errorf("fetch caption track: %w", err)
	}

	return parseTimedText(doc)
}

func (c *Client) get(ctx context.Context, target, language string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", language)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: status %d", ErrVideoUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

// resolve makes relative track URLs absolute against the client base URL.
func (c *Client) resolve(trackURL string) (string, error) {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(trackURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// parsePlayerResponse locates the inline ytInitialPlayerResponse object in
// the watch page scripts.
func parsePlayerResponse(page []byte) (*playerResponse, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page)))
	if err != nil {
		return nil, fmt.Errorf("parse watch page: %w", err)
	}

	var (
		player *playerResponse
		found  bool
		decErr error
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, playerMarker)
		if idx < 0 {
			return true
		}
		start := strings.IndexByte(text[idx:], '{')
		if start < 0 {
			return true
		}
		found = true

		var pr playerResponse
		dec := json.NewDecoder(strings.NewReader(text[idx+start:]))
		if err := dec.Decode(&pr); err != nil {
			decErr = err
			return true
		}
		player = &pr
		return false
	})

	if player != nil {
		return player, nil
	}
	if found {
		return nil, fmt.Errorf("decode player response: %w", decErr)
	}
	return nil, fmt.Errorf("%w: player response not found", ErrNoCaptions)
}

// selectTrack picks the first language in preference order, preferring a
// manual track over a generated one.
func selectTrack(tracks []captionTrack, languages []string) (captionTrack, bool) {
	for _, lang := range languages {
		var generated *captionTrack
		for i := range tracks {
			t := tracks[i]
			if !languageMatches(t.LanguageCode, lang) {
				continue
			}
			if t.Kind != "asr" {
				return t, true
			}
			if generated == nil {
				generated = &tracks[i]
			}
		}
		if generated != nil {
			return *generated, true
		}
	}
	return captionTrack{}, false
}

// languageMatches treats "en" as matching "en-US" and "en-GB".
func languageMatches(code, want string) bool {
	code, want = strings.ToLower(code), strings.ToLower(want)
	return code == want || strings.HasPrefix(code, want+"-")
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

func parseTimedText(doc []byte) ([]Segment, error) {
	var tt timedText
	if err := xml.Unmarshal(doc, &tt); err != nil {
		return nil, fmt.Errorf("parse caption track: %w", err)
	}

	segments := make([]Segment, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		start, err := strconv.ParseFloat(t.Start, 64)
		if err != nil {
			continue
		}
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		segments = append(segments, Segment{
			Start:    start,
			Duration: dur,
			// timedtext bodies are entity-encoded twice
			Text: html.UnescapeString(t.Body),
		})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: caption track is empty", ErrNoCaptions)
	}
	return segments, nil
}
