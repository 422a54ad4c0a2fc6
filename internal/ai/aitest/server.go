// Package aitest provides a fake OpenAI compatible API for tests.
package aitest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
)

// ChatFunc answers a chat completion request. A non-nil error is returned to the client as HTTP 500.
type ChatFunc func(req openai.ChatCompletionRequest) (string, error)

// ImageFunc answers an image generation request. A non-nil error is returned to the client as HTTP 500.
type ImageFunc func(req openai.ImageRequest) (image.Image, error)

type Server struct {
	// BaseURL is to be used as ai.Config.BaseURL.
	BaseURL string

	mu        sync.Mutex
	chat      ChatFunc
	image     ImageFunc
	chatReqs  []openai.ChatCompletionRequest
	imageReqs []openai.ImageRequest
}

// NewServer starts the fake API and stops it when the test finishes.
func NewServer(t testing.TB, chat ChatFunc, img ImageFunc) *Server {
	t.Helper()
	s := &Server{chat: chat, image: img}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.handleChat)
	mux.HandleFunc("POST /v1/images/generations", s.handleImage)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	s.BaseURL = srv.URL + "/v1"
	return s
}

// SetChat replaces the chat handler.
func (s *Server) SetChat(chat ChatFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = chat
}

// SetImage replaces the image handler.
func (s *Server) SetImage(img ImageFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = img
}

func (s *Server) ChatRequests() []openai.ChatCompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]openai.ChatCompletionRequest(nil), s.chatReqs...)
}

func (s *Server) ImageRequests() []openai.ImageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]openai.ImageRequest(nil), s.imageReqs...)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	s.chatReqs = append(s.chatReqs, req)
	chat := s.chat
	s.mu.Unlock()

	if chat == nil {
		writeError(w, http.StatusNotImplemented, "chat not configured")
		return
	}
	content, err := chat(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, openai.ChatCompletionResponse{ //nolint:exhaustruct // only the fields the client reads
		ID:     "chatcmpl-test",
		Object: "chat.completion",
		Model:  req.Model,
		Choices: []openai.ChatCompletionChoice{{ //nolint:exhaustruct // see above
			Index:        0,
			Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}, //nolint:exhaustruct // see above
			FinishReason: openai.FinishReasonStop,
		}},
		Usage: openai.Usage{CompletionTokens: len(content) / 4, PromptTokens: 1, TotalTokens: 1 + len(content)/4}, //nolint:exhaustruct,mnd // rough estimate
	})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	var req openai.ImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	s.imageReqs = append(s.imageReqs, req)
	img := s.image
	s.mu.Unlock()

	if img == nil {
		writeError(w, http.StatusNotImplemented, "images not configured")
		return
	}
	rendered, err := img(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var buf bytes.Buffer
	if err = png.Encode(&buf, rendered); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, openai.ImageResponse{ //nolint:exhaustruct // only the fields the client reads
		Created: 1,
		Data:    []openai.ImageResponseDataInner{{B64JSON: base64.StdEncoding.EncodeToString(buf.Bytes())}}, //nolint:exhaustruct // see above
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": "server_error"},
	})
}

// Checkerboard returns a size×size image of 2×2 black and white squares so that resampling can be verified.
func Checkerboard(size int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			c := color.RGBA{A: 255} //nolint:exhaustruct // black
			if (x/2+y/2)%2 == 0 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Solid returns a size×size image filled with c.
func Solid(size int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			img.Set(x, y, c)
		}
	}
	return img
}
