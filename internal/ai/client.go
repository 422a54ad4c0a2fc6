package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/jpeg" // Decode JPEG responses.
	_ "image/png"  // Decode PNG responses.
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/myrjola/noirline/internal/errors"
	"github.com/sashabaranov/go-openai"
)

var (
	ErrEmptyCompletion  = errors.NewSentinel("completion returned no content")
	ErrUnsupportedSize  = errors.NewSentinel("unsupported image size")
	ErrEmptyImage       = errors.NewSentinel("image response contained no image")
	ErrImageFetchFailed = errors.NewSentinel("fetch generated image")
)

// Config is the provider configuration. It is passed explicitly to NewClient.
type Config struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	ImageModel string
	// Timeout bounds a single completion or synthesis call including image download.
	Timeout time.Duration
}

type Role string

const (
	RoleSystem Role = openai.ChatMessageRoleSystem
	RoleUser   Role = openai.ChatMessageRoleUser
)

// Message is a role-tagged chat message.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest asks for a single text completion.
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Client talks to an OpenAI compatible API for text completions and image synthesis.
type Client struct {
	client     *openai.Client
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	httpClient := &http.Client{} //nolint:exhaustruct // timeouts come from the request context
	clientConfig.HTTPClient = httpClient
	return &Client{
		client:     openai.NewClientWithConfig(clientConfig),
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger.With("source", "ai.Client"),
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.Timeout)
}

// Complete sends the messages once and returns the text of the first choice.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{ //nolint:exhaustruct // this is better for readability
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	start := time.Now()
	completion, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:       c.cfg.ChatModel,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			Messages:    messages,
		},
	)
	requestDuration.WithLabelValues(c.cfg.ChatModel, kindChat).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(c.cfg.ChatModel, kindChat, statusError).Inc()
		return "", errors.Wrap(err, "create chat completion", slog.String("model", c.cfg.ChatModel))
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		requestsTotal.WithLabelValues(c.cfg.ChatModel, kindChat, statusEmpty).Inc()
		return "", errors.Wrap(ErrEmptyCompletion, "read chat completion", slog.String("model", c.cfg.ChatModel))
	}
	requestsTotal.WithLabelValues(c.cfg.ChatModel, kindChat, statusSuccess).Inc()
	completionTokens.WithLabelValues(c.cfg.ChatModel).Observe(float64(completion.Usage.CompletionTokens))

	c.logger.LogAttrs(ctx, slog.LevelDebug, "chat completion finished",
		slog.Duration("duration", time.Since(start)),
		slog.Int("max_tokens", req.MaxTokens),
		slog.Int("completion_tokens", completion.Usage.CompletionTokens))

	return completion.Choices[0].Message.Content, nil
}

func imageSize(size int) (string, error) {
	switch size {
	case 256: //nolint:mnd // square sizes supported by the API
		return openai.CreateImageSize256x256, nil
	case 512: //nolint:mnd // see above
		return openai.CreateImageSize512x512, nil
	case 1024: //nolint:mnd // see above
		return openai.CreateImageSize1024x1024, nil
	default:
		return "", errors.Wrap(ErrUnsupportedSize, "map image size", slog.Int("size", size))
	}
}

// Synthesize renders prompt as a size×size image and decodes it.
func (c *Client) Synthesize(ctx context.Context, prompt string, size int) (image.Image, error) {
	apiSize, err := imageSize(size)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	response, err := c.client.CreateImage(ctx, openai.ImageRequest{ //nolint:exhaustruct // this is better for readability
		Model:          c.cfg.ImageModel,
		Prompt:         prompt,
		Size:           apiSize,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		N:              1,
	})
	requestDuration.WithLabelValues(c.cfg.ImageModel, kindImage).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(c.cfg.ImageModel, kindImage, statusError).Inc()
		return nil, errors.Wrap(err, "create image", slog.String("model", c.cfg.ImageModel))
	}
	if len(response.Data) == 0 {
		requestsTotal.WithLabelValues(c.cfg.ImageModel, kindImage, statusEmpty).Inc()
		return nil, errors.Wrap(ErrEmptyImage, "read image response")
	}

	var imgBytes []byte
	data := response.Data[0]
	switch {
	case data.B64JSON != "":
		if imgBytes, err = base64.StdEncoding.DecodeString(data.B64JSON); err != nil {
			requestsTotal.WithLabelValues(c.cfg.ImageModel, kindImage, statusError).Inc()
			return nil, errors.Wrap(err, "base64 decode image")
		}
	case data.URL != "":
		if imgBytes, err = c.fetch(ctx, data.URL); err != nil {
			requestsTotal.WithLabelValues(c.cfg.ImageModel, kindImage, statusError).Inc()
			return nil, err
		}
	default:
		requestsTotal.WithLabelValues(c.cfg.ImageModel, kindImage, statusEmpty).Inc()
		return nil, errors.Wrap(ErrEmptyImage, "read image response")
	}

	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		requestsTotal.WithLabelValues(c.cfg.ImageModel, kindImage, statusError).Inc()
		return nil, errors.Wrap(err, "decode image")
	}
	requestsTotal.WithLabelValues(c.cfg.ImageModel, kindImage, statusSuccess).Inc()
	c.logger.LogAttrs(ctx, slog.LevelDebug, "image synthesized",
		slog.Duration("duration", time.Since(start)), slog.Int("size", size))
	return img, nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create image request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "download image"), ErrImageFetchFailed)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "could not close image body", errors.SlogError(err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrap(ErrImageFetchFailed, "download image", slog.Int("status", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read image body"), ErrImageFetchFailed)
	}
	return body, nil
}
