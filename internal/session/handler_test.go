package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tjfontaine/youtube-reviewer/internal/analysis"
	"github.com/tjfontaine/youtube-reviewer/internal/captions"
	"github.com/tjfontaine/youtube-reviewer/internal/models"
	"github.com/tjfontaine/youtube-reviewer/internal/phases"
	"github.com/tjfontaine/youtube-reviewer/internal/storage/memory"
	"github.com/tjfontaine/youtube-reviewer/internal/youtube"
)

const (
	keyConceptsJSON = `{"key_concepts":[{"term":"Photosynthesis","definition":"Light to sugar.","relevance":"Core topic.","timestamp":"00:00:00"}]}`
	thesisJSON      = `{"main_thesis":"Plants run on light.","argument_chains":[]}`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSource struct {
	calls atomic.Int32
}

func (s *stubSource) Fetch(context.Context, string, []string) ([]youtube.Segment, error) {
	s.calls.Add(1)
	return []youtube.Segment{
		{Start: 0, Text: "Today: photosynthesis"},
		{Start: 4, Text: "Chlorophyll is green"},
	}, nil
}

type testEnv struct {
	srv    *httptest.Server
	source *stubSource
}

func newTestEnv(t *testing.T, analyzer analysis.Analyzer, cfg Config) *testEnv {
	t.Helper()
	if analyzer == nil {
		analyzer = analysis.AnalyzerFunc(func(_ context.Context, req analysis.Request) (json.RawMessage, error) {
			if req.Schema.Name == models.ThesisArgumentSchema.Name {
				return json.RawMessage(thesisJSON), nil
			}
			return json.RawMessage(keyConceptsJSON), nil
		})
	}

	cache, err := captions.New(memory.New(), discardLogger())
	if err != nil {
		t.Fatalf("captions.New() error = %v", err)
	}
	source := &stubSource{}
	reg, err := phases.NewRegistry(phases.Deps{
		Analyzer: analyzer,
		Cache:    cache,
		Fetcher:  phases.NewFetcher(source, cache, phases.FetcherConfig{}, discardLogger()),
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	r := chi.NewRouter()
	NewHandler(reg, cfg, discardLogger()).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, source: source}
}

func (e *testEnv) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// exchange sends request and reads frames until the server closes.
func exchange(t *testing.T, conn *websocket.Conn, request string) ([]Frame, *websocket.CloseError) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(request)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	var frames []Frame
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return frames, closeErr
			}
			t.Fatalf("ReadMessage() error = %v", err)
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", data, err)
		}
		frames = append(frames, f)
	}
}

func frameTypes(frames []Frame) string {
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = string(f.Type)
		if f.ID != "" {
			parts[i] += "(" + f.ID + ")"
		}
	}
	return strings.Join(parts, ",")
}

func TestSession_KeyConceptsHappyPath(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	conn := env.dial(t, "/ws/key-concepts")

	frames, closeErr := exchange(t, conn, `{"video_url":"https://youtube.com/watch?v=abc123","knowledge_level":"beginner"}`)

	want := "phase_started,workflow_started,step_started(caption_extractor),step_started(key_concepts_extractor),phase_completed"
	if got := frameTypes(frames); got != want {
		t.Fatalf("frames = %s, want %s", got, want)
	}
	for _, f := range frames {
		if f.Phase != 1 || f.Timestamp.IsZero() {
			t.Errorf("frame %+v missing phase or timestamp", f)
		}
	}

	last := frames[len(frames)-1]
	out, _ := json.Marshal(last.Output)
	var resp models.KeyConceptsResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("Unmarshal(output) error = %v", err)
	}
	if resp.VideoID != "abc123" || len(resp.KeyConcepts) == 0 {
		t.Errorf("output = %s, want key concepts for abc123", out)
	}
	if last.Message == "" {
		t.Error("phase_completed has no message")
	}

	if closeErr.Code != websocket.CloseNormalClosure {
		t.Errorf("close code = %d, want %d", closeErr.Code, websocket.CloseNormalClosure)
	}
}

func TestSession_MissingField(t *testing.T) {
	tests := []struct {
		path       string
		request    string
		wantMsg    string
		wantReason string
	}{
		{"/ws/connections", `{}`, "key_concepts is required", "key_concepts required"},
		{"/ws/key-concepts", `{"knowledge_level":"advanced"}`, "video_url is required", "video_url required"},
		{"/ws/thesis-argument", `{"video_id":""}`, "video_id is required", "video_id required"},
		{"/ws/claim-verification", `{}`, "thesis, argument_chains or claims is required", "thesis, argument_chains or claims required"},
		{"/ws/phase/5", `{}`, "key_concepts or thesis is required", "key_concepts or thesis required"},
		{"/ws/connections", `{"key_concepts":"x"}`, "key_concepts is required", "key_concepts required"},
		{"/ws/key-concepts", `{"video_url":123,"knowledge_level":"advanced"}`, "video_url is required", "video_url required"},
	}

	env := newTestEnv(t, nil, Config{})
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			conn := env.dial(t, tt.path)
			frames, closeErr := exchange(t, conn, tt.request)

			if len(frames) != 1 || frames[0].Type != FrameError {
				t.Fatalf("frames = %s, want a single error", frameTypes(frames))
			}
			if frames[0].Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", frames[0].Message, tt.wantMsg)
			}
			if closeErr.Code != websocket.ClosePolicyViolation {
				t.Errorf("close code = %d, want %d", closeErr.Code, websocket.ClosePolicyViolation)
			}
			if closeErr.Text != tt.wantReason {
				t.Errorf("close reason = %q, want %q", closeErr.Text, tt.wantReason)
			}
		})
	}
}

func TestSession_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	for _, request := range []string{`video_url=abc`, `["https://youtu.be/abc123"]`} {
		t.Run(request, func(t *testing.T) {
			conn := env.dial(t, "/ws/key-concepts")

			frames, closeErr := exchange(t, conn, request)

			if len(frames) != 1 || frames[0].Message != "invalid JSON request" {
				t.Fatalf("frames = %+v, want invalid JSON error", frames)
			}
			if closeErr.Code != websocket.CloseUnsupportedData {
				t.Errorf("close code = %d, want %d", closeErr.Code, websocket.CloseUnsupportedData)
			}
		})
	}
}

func TestSession_UnknownPhase(t *testing.T) {
	env := newTestEnv(t, nil, Config{})
	conn := env.dial(t, "/ws/phase/9")

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if f.Type != FrameError || f.Phase != 0 {
		t.Errorf("frame = %+v, want error without phase", f)
	}
	if strings.Contains(string(data), `"phase"`) {
		t.Errorf("frame %s carries a phase", data)
	}
}

func TestSession_CacheReuseAcrossPhases(t *testing.T) {
	env := newTestEnv(t, nil, Config{})

	exchange(t, env.dial(t, "/ws/key-concepts"), `{"video_url":"https://youtu.be/abc123"}`)

	frames, _ := exchange(t, env.dial(t, "/ws/thesis-argument"), `{"video_id":"abc123"}`)
	last := frames[len(frames)-1]
	if last.Type != FramePhaseCompleted {
		t.Fatalf("last frame = %s, want phase_completed", last.Type)
	}
	if got := last.Output.(map[string]any)["main_thesis"]; got != "Plants run on light." {
		t.Errorf("main_thesis = %v", got)
	}
	if n := env.source.calls.Load(); n != 1 {
		t.Errorf("transcript source calls = %d, want 1", n)
	}

	frames, _ = exchange(t, env.dial(t, "/ws/phase/2"), `{"video_id":"zzz999"}`)
	last = frames[len(frames)-1]
	if got := last.Output.(map[string]any)["main_thesis"]; got != "Error: captions not found in cache" {
		t.Errorf("main_thesis = %v, want cache miss error", got)
	}
}

func TestSession_StepFailedStillCompletes(t *testing.T) {
	analyzer := analysis.AnalyzerFunc(func(context.Context, analysis.Request) (json.RawMessage, error) {
		panic("analyzer bug")
	})
	env := newTestEnv(t, analyzer, Config{})

	frames, closeErr := exchange(t, env.dial(t, "/ws/connections"), `{"key_concepts":[{"term":"x"}]}`)

	want := "phase_started,workflow_started,step_started(connections_extractor),step_failed(connections_extractor),error,phase_completed"
	if got := frameTypes(frames); got != want {
		t.Fatalf("frames = %s, want %s", got, want)
	}
	if frames[3].Message == "" {
		t.Error("step_failed has no message")
	}
	if frames[4].Phase != 3 || frames[4].Message != frames[3].Message {
		t.Errorf("error frame = %+v, want phase 3 with the stage message", frames[4])
	}
	out := frames[5].Output.(map[string]any)
	if out["synthesis"] != "Error generating connections" {
		t.Errorf("output = %v", out)
	}
	if closeErr.Code != websocket.CloseNormalClosure {
		t.Errorf("close code = %d, want normal", closeErr.Code)
	}
}

func TestSession_ClientDisconnectCancelsRun(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	analyzer := analysis.AnalyzerFunc(func(ctx context.Context, _ analysis.Request) (json.RawMessage, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})
	env := newTestEnv(t, analyzer, Config{})

	conn := env.dial(t, "/ws/connections")
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"key_concepts":[{"term":"x"}]}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("analysis never started")
	}
	conn.Close()

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("run not cancelled after client disconnect")
	}
}

func TestSession_OriginCheck(t *testing.T) {
	env := newTestEnv(t, nil, Config{AllowedOrigins: []string{"http://localhost:5173"}})
	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws/key-concepts"

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Dial() with foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	header = http.Header{"Origin": []string{"http://localhost:5173"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial() with allowed origin error = %v", err)
	}
	conn.Close()
}
