// Package inference wraps the remote generation backend. It uploads
// attachments, runs generation, and returns failures as *Error values
// classified from the backend's own status signals.
package inference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/promptgate/promptgate/internal/metrics"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// ErrMissingCredential is returned when an account has no backend credential.
var ErrMissingCredential = errors.New("missing backend credential")

// Source is a stored attachment that can be reopened for upload.
type Source interface {
	Open() (io.ReadCloser, error)
	Name() string
}

// RemoteRef points at an attachment held by the backend.
type RemoteRef struct {
	URI      string
	MIMEType string
	Name     string
}

// GenerateInput is one generation call. Ref may be nil for text-only calls.
type GenerateInput struct {
	Prompt            string
	Ref               *RemoteRef
	MediaType         string
	SystemInstruction string
}

func (in GenerateInput) mediaType() string {
	if in.MediaType != "" {
		return in.MediaType
	}
	if in.Ref != nil && in.Ref.MIMEType != "" {
		return in.Ref.MIMEType
	}
	return DefaultMediaType
}

// Usage reports token accounting when the backend provides it.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CandidatesTokens int `json:"candidatesTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Content is a successful generation.
type Content struct {
	Text         string `json:"text"`
	ModelVersion string `json:"modelVersion,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`
	Usage        *Usage `json:"usage,omitempty"`
}

// api is the per-credential backend surface.
type api interface {
	upload(ctx context.Context, r io.Reader, displayName, mediaType string) (*RemoteRef, error)
	generate(ctx context.Context, in GenerateInput) (*Content, error)
}

type apiFactory func(ctx context.Context, credential string) (api, error)

// Options configures a Client.
type Options struct {
	Model      string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Breaker    BreakerConfig
	Metrics    metrics.Recorder
	Logger     *slog.Logger
}

// Client calls the inference backend on behalf of an account.
type Client struct {
	factory apiFactory
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[any]
	metrics metrics.Recorder
	logger  *slog.Logger
}

// New creates a Client backed by the Gemini API.
func New(opts Options) *Client {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	return newClient(newGeminiFactory(model, opts.BaseURL, opts.HTTPClient), opts)
}

func newClient(factory apiFactory, opts Options) *Client {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		factory: factory,
		timeout: opts.Timeout,
		breaker: newBreaker(opts.Breaker, opts.Logger, opts.Metrics),
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// UploadAttachment sends a stored attachment to the backend. When the
// backend does not report a media type, one is inferred from the name.
func (c *Client) UploadAttachment(ctx context.Context, credential string, src Source, mediaType string) (*RemoteRef, error) {
	if mediaType == "" {
		mediaType = MediaTypeFromName(src.Name())
	}

	var ref *RemoteRef
	err := c.call(ctx, OpUpload, credential, func(ctx context.Context, be api) error {
		rc, err := src.Open()
		if err != nil {
			return &Error{Kind: KindOther, Op: OpUpload, Message: "failed to open attachment", Err: err}
		}
		defer rc.Close()

		ref, err = be.upload(ctx, rc, src.Name(), mediaType)
		return err
	})
	if err != nil {
		return nil, err
	}

	if ref.MIMEType == "" {
		ref.MIMEType = MediaTypeFromName(src.Name())
	}
	return ref, nil
}

// Generate runs a generation. in.Ref is optional.
func (c *Client) Generate(ctx context.Context, credential string, in GenerateInput) (*Content, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, &Error{Kind: KindOther, Op: OpGenerate, Message: "prompt is required"}
	}

	var content *Content
	err := c.call(ctx, OpGenerate, credential, func(ctx context.Context, be api) error {
		var err error
		content, err = be.generate(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

// call runs fn through the breaker under the configured timeout and
// classifies whatever comes back.
func (c *Client) call(ctx context.Context, op Op, credential string, fn func(context.Context, api) error) error {
	if credential == "" {
		return &Error{Kind: KindCredential, Op: op, Message: "account has no backend credential", Err: ErrMissingCredential}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		be, err := c.factory(ctx, credential)
		if err != nil {
			return nil, err
		}
		return nil, fn(ctx, be)
	})
	duration := time.Since(start)

	if err == nil {
		c.metrics.ObserveBackendCall(string(op), "ok", duration)
		return nil
	}

	classified := classify(op, err)
	classified.Op = op
	c.metrics.ObserveBackendCall(string(op), classified.Kind.String(), duration)
	c.logger.WarnContext(ctx, "backend call failed",
		"op", string(op),
		"kind", classified.Kind.String(),
		"duration_ms", duration.Milliseconds(),
		"error", classified.Message,
	)
	return classified
}
