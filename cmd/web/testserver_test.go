package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/myrjola/noirline/internal/ai/aitest"
	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/logging"
	"github.com/myrjola/noirline/internal/testhelpers"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitForReady calls the specified endpoint until it gets a HTTP 200 Success
// response or until the context is cancelled or the 1-second timeout is reached.
func waitForReady(ctx context.Context, endpoint string) error {
	const (
		timeout = time.Second
		backoff = 50 * time.Millisecond
	)
	client := http.Client{}
	start := time.Now()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return errors.Wrap(err, "create request")
		}
		if resp, doErr := client.Do(req); doErr == nil {
			if err = resp.Body.Close(); err != nil {
				return errors.Wrap(err, "close response body")
			}
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // test helper
		case <-time.After(backoff):
			if time.Since(start) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready")
			}
		}
	}
}

// fakeChat answers by content kind, which the generator tells apart by token budget.
func fakeChat(req openai.ChatCompletionRequest) (string, error) {
	switch req.MaxTokens {
	case 1000:
		return testhelpers.OutlineJSON(), nil
	case 2000:
		var payload struct {
			CurrentLevel int `json:"current_level"`
		}
		if err := json.Unmarshal([]byte(req.Messages[1].Content), &payload); err != nil {
			return "", err //nolint:wrapcheck // test helper
		}
		return testhelpers.LevelJSON(payload.CurrentLevel), nil
	case 100:
		return `"EXTRA! EXTRA! DAME SINGS"`, nil
	case 200:
		return `{"prompt": "A rainy alley", "image_name": "rainy_alley.png"}`, nil
	default:
		return "", fmt.Errorf("unexpected max tokens %d", req.MaxTokens) //nolint:err113 // test helper
	}
}

func fakeImage(req openai.ImageRequest) (image.Image, error) {
	if req.Size == openai.CreateImageSize256x256 {
		return aitest.Checkerboard(256), nil
	}
	return aitest.Checkerboard(512), nil
}

type testServer struct {
	url    string
	client http.Client
	ai     *aitest.Server
}

// startTestServer starts the server against a fake model API, waits for it to be ready and returns it.
func startTestServer(t *testing.T, w io.Writer) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	fake := aitest.NewServer(t, fakeChat, fakeImage)
	staticDir := t.TempDir()
	env := map[string]string{
		"NOIRLINE_ADDR":               "localhost:0",
		"NOIRLINE_SQLITE_URL":         ":memory:",
		"NOIRLINE_STATIC_DIR":         staticDir,
		"OPENAI_API_KEY":              "test-key",
		"OPENAI_BASE_URL":             fake.BaseURL,
		"NOIRLINE_AI_TIMEOUT_SECONDS": "5",
	}
	lookupEnv := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	// We need to grab the dynamically allocated port from the log output.
	addrCh := make(chan string, 1)
	logger := slog.New(logging.NewContextHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "Addr" {
				addrCh <- a.Value.String()
			}
			return a
		},
	})))

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := run(ctx, logger, lookupEnv); err != nil {
			cancel()
			assert.NoError(t, err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-ctx.Done():
		t.Fatal("server failed to start")
		return nil
	case addr := <-addrCh:
		serverURL := "http://" + addr
		require.NoError(t, waitForReady(ctx, serverURL+"/api/healthy"))
		return &testServer{url: serverURL, client: http.Client{}, ai: fake}
	}
}

// Post sends v as JSON to urlPath and decodes the JSON response into a map.
func (s *testServer) Post(t *testing.T, urlPath string, v any) (int, map[string]any) {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return s.PostRaw(t, urlPath, body)
}

func (s *testServer) PostRaw(t *testing.T, urlPath string, body []byte) (int, map[string]any) {
	t.Helper()
	resp, err := s.client.Post(s.url+urlPath, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, resp.Body.Close())
	}()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

// Get fetches urlPath and returns the response with its body read.
func (s *testServer) Get(t *testing.T, urlPath string) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.client.Get(s.url + urlPath)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, resp.Body.Close())
	}()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}
