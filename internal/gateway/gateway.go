// Package gateway implements the request lifecycle: key and quota checks,
// attachment staging, the backend call, and the usage write-back.
package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/promptgate/promptgate/internal/auth"
	"github.com/promptgate/promptgate/internal/inference"
	"github.com/promptgate/promptgate/internal/metrics"
	"github.com/promptgate/promptgate/internal/model"
	"github.com/promptgate/promptgate/internal/repository"
	"github.com/promptgate/promptgate/internal/upload"
)

// Ledger reads and updates account usage.
type Ledger interface {
	GetAccountByKey(ctx context.Context, key string) (*model.Account, error)
	AccountExists(ctx context.Context, key string) (bool, error)
	// IncrementCalls sets calls_made to expectedPrior+1 only if it still
	// equals expectedPrior, returning repository.ErrStaleCount otherwise.
	IncrementCalls(ctx context.Context, key string, expectedPrior int) (int, error)
	ResetCalls(ctx context.Context, key string) error
}

// UploadStore stages attachments on local storage.
type UploadStore interface {
	Store(r io.Reader, suggestedName string) (*upload.Handle, error)
}

// Inference is the backend client.
type Inference interface {
	UploadAttachment(ctx context.Context, credential string, src inference.Source, mediaType string) (*inference.RemoteRef, error)
	Generate(ctx context.Context, credential string, in inference.GenerateInput) (*inference.Content, error)
}

// Options is the immutable configuration of a Controller.
type Options struct {
	KeyPrefix        string
	DefaultMaxCalls  int
	LedgerTimeout    time.Duration
	MaxLedgerRetries int
}

const (
	defaultLedgerTimeout    = 5 * time.Second
	defaultMaxLedgerRetries = 3
)

// Controller serves account and generation operations.
type Controller struct {
	ledger    Ledger
	uploads   UploadStore
	inference Inference
	admin     *auth.AdminVerifier
	keys      auth.KeyFormat
	opts      Options
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// New creates a Controller.
func New(ledger Ledger, uploads UploadStore, inf Inference, admin *auth.AdminVerifier, opts Options, logger *slog.Logger, recorder metrics.Recorder) *Controller {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if admin == nil {
		admin = auth.NewAdminVerifier("", "")
	}
	if opts.LedgerTimeout <= 0 {
		opts.LedgerTimeout = defaultLedgerTimeout
	}
	if opts.MaxLedgerRetries <= 0 {
		opts.MaxLedgerRetries = defaultMaxLedgerRetries
	}

	return &Controller{
		ledger:    ledger,
		uploads:   uploads,
		inference: inf,
		admin:     admin,
		keys:      auth.NewKeyFormat(opts.KeyPrefix),
		opts:      opts,
		logger:    logger,
		metrics:   recorder,
	}
}

// ValidKey reports whether key has the recognized format. It never touches
// the ledger.
func (c *Controller) ValidKey(key string) bool {
	return c.keys.Valid(key)
}

// HandleGeneration runs one generation for the account named by req.Key and
// records the call against its quota.
func (c *Controller) HandleGeneration(ctx context.Context, req model.GenerationRequest) (*model.GenerationOutcome, error) {
	out, err := c.handleGeneration(ctx, req)
	if err != nil {
		c.metrics.IncGeneration(KindOf(err).String())
		return nil, err
	}
	c.metrics.IncGeneration("success")
	return out, nil
}

func (c *Controller) handleGeneration(ctx context.Context, req model.GenerationRequest) (*model.GenerationOutcome, error) {
	if err := c.keys.Validate(req.Key); err != nil {
		return nil, newError(KindUnauthorized, msgUnauthorized, err)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, newError(KindInvalidInput, msgPromptRequired, nil)
	}

	account, err := c.lookup(ctx, req.Key)
	if err != nil {
		return nil, err
	}

	limit := account.Limit(c.opts.DefaultMaxCalls)
	if account.Remaining(c.opts.DefaultMaxCalls) <= 0 {
		return nil, &Error{
			Kind:      KindQuotaExceeded,
			Message:   msgQuotaExceeded,
			CallsMade: account.CallsMade,
			MaxCalls:  limit,
		}
	}

	att := req.Attachment
	if att == nil || att.Content == nil {
		return nil, newError(KindUpstreamAttachmentFailure, msgNoImage, nil)
	}

	handle, err := c.uploads.Store(att.Content, att.Filename)
	if err != nil {
		if errors.Is(err, upload.ErrEmptyAttachment) || errors.Is(err, upload.ErrAttachmentTooLarge) {
			return nil, newError(KindUpstreamAttachmentFailure, msgUploadFailed, err)
		}
		return nil, newError(KindUpstreamUnavailable, msgInternal, err)
	}
	defer c.release(ctx, handle)

	mediaType := inference.ResolveMediaType(att.MediaType, att.Filename)

	ref, err := c.inference.UploadAttachment(ctx, account.BackendCredential, handle, mediaType)
	if err != nil {
		return nil, fromUploadError(err)
	}

	content, err := c.inference.Generate(ctx, account.BackendCredential, inference.GenerateInput{
		Prompt:            req.Prompt,
		Ref:               ref,
		MediaType:         mediaType,
		SystemInstruction: req.SystemInstruction,
	})
	if err != nil {
		return nil, fromGenerateError(err)
	}

	callsMade := c.recordUsage(ctx, req.Key, account.CallsMade, limit)

	return &model.GenerationOutcome{
		Result:         content,
		CallsMade:      callsMade,
		CallsRemaining: max(limit-callsMade, 0),
	}, nil
}

// GetAccount returns the public view of an account.
func (c *Controller) GetAccount(ctx context.Context, key string) (*model.AccountResponse, error) {
	if err := c.keys.Validate(key); err != nil {
		return nil, newError(KindUnauthorized, msgUnauthorized, err)
	}

	account, err := c.lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	resp := account.ToResponse(c.opts.DefaultMaxCalls)
	return &resp, nil
}

// CheckKey reports whether an account exists for key.
func (c *Controller) CheckKey(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, newError(KindInvalidInput, msgKeyRequired, nil)
	}
	if err := c.keys.Validate(key); err != nil {
		return false, newError(KindUnauthorized, msgUnauthorized, err)
	}

	lctx, cancel := context.WithTimeout(ctx, c.opts.LedgerTimeout)
	defer cancel()

	exists, err := c.ledger.AccountExists(lctx, key)
	if err != nil {
		c.logger.ErrorContext(ctx, "account existence check failed",
			"key_hint", auth.KeyHint(key),
			"error", err,
		)
		return false, newError(KindUpstreamUnavailable, msgInternal, err)
	}
	return exists, nil
}

// ResetCalls sets an account's usage counter to zero. adminSecret must match
// the configured administrative secret exactly.
func (c *Controller) ResetCalls(ctx context.Context, key, adminSecret string) error {
	if err := c.keys.Validate(key); err != nil {
		return newError(KindUnauthorized, msgUnauthorized, err)
	}
	if !c.admin.Verify(adminSecret) {
		c.logger.WarnContext(ctx, "admin reset rejected", "key_hint", auth.KeyHint(key))
		return newError(KindUnauthorized, msgUnauthorized, nil)
	}

	lctx, cancel := context.WithTimeout(ctx, c.opts.LedgerTimeout)
	defer cancel()

	if err := c.ledger.ResetCalls(lctx, key); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return newError(KindNotFound, msgNotFound, err)
		}
		c.logger.ErrorContext(ctx, "usage reset failed",
			"key_hint", auth.KeyHint(key),
			"error", err,
		)
		return newError(KindUpstreamUnavailable, msgInternal, err)
	}

	c.logger.InfoContext(ctx, "usage reset", "key_hint", auth.KeyHint(key))
	return nil
}

func (c *Controller) lookup(ctx context.Context, key string) (*model.Account, error) {
	lctx, cancel := context.WithTimeout(ctx, c.opts.LedgerTimeout)
	defer cancel()

	account, err := c.ledger.GetAccountByKey(lctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, newError(KindNotFound, msgNotFound, err)
		}
		c.logger.ErrorContext(ctx, "account lookup failed",
			"key_hint", auth.KeyHint(key),
			"error", err,
		)
		return nil, newError(KindUpstreamUnavailable, msgInternal, err)
	}
	return account, nil
}

// recordUsage writes back prior+1 with a compare-and-set, re-reading the
// counter after each conflict. It runs detached from caller cancellation;
// the generation has already happened and must be counted. The counter is
// never written past limit: when concurrent calls already spent the budget
// the write is skipped. Failures are logged and the optimistic count is
// returned.
func (c *Controller) recordUsage(ctx context.Context, key string, prior, limit int) int {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.LedgerTimeout)
	defer cancel()

	log := c.logger.With("key_hint", auth.KeyHint(key))

	for attempt := 0; attempt <= c.opts.MaxLedgerRetries; attempt++ {
		callsMade, err := c.ledger.IncrementCalls(wctx, key, prior)
		if err == nil {
			c.metrics.IncLedgerWrite("ok")
			return callsMade
		}

		if !errors.Is(err, repository.ErrStaleCount) {
			c.metrics.IncLedgerWrite("failed")
			log.ErrorContext(ctx, "failed to record usage", "calls_made", prior, "error", err)
			return min(prior+1, limit)
		}

		c.metrics.IncLedgerWrite("conflict")
		log.WarnContext(ctx, "usage counter changed concurrently, retrying",
			"expected", prior,
			"attempt", attempt+1,
		)

		account, err := c.ledger.GetAccountByKey(wctx, key)
		if err != nil {
			c.metrics.IncLedgerWrite("failed")
			log.ErrorContext(ctx, "failed to re-read usage", "error", err)
			return min(prior+1, limit)
		}
		prior = account.CallsMade
		if prior >= limit {
			c.metrics.IncLedgerWrite("at_limit")
			log.WarnContext(ctx, "budget spent by concurrent calls, not recording usage",
				"calls_made", prior,
				"max_calls", limit,
			)
			return prior
		}
	}

	c.metrics.IncLedgerWrite("failed")
	log.ErrorContext(ctx, "gave up recording usage after repeated conflicts", "calls_made", prior)
	return min(prior+1, limit)
}

func (c *Controller) release(ctx context.Context, h *upload.Handle) {
	if err := h.Release(); err != nil {
		c.logger.ErrorContext(ctx, "failed to remove temporary upload",
			"file", h.Name(),
			"error", err,
		)
	}
}

func fromUploadError(err error) *Error {
	switch inference.KindOf(err) {
	case inference.KindCredential:
		return newError(KindUpstreamCredentialFailure, msgInvalidCredential, err)
	case inference.KindQuota:
		return newError(KindUpstreamQuotaFailure, msgBackendQuota, err)
	case inference.KindTransport:
		return newError(KindUpstreamUnavailable, msgBackendUnavailable, err)
	default:
		return newError(KindUpstreamAttachmentFailure, msgUploadFailed, err)
	}
}

func fromGenerateError(err error) *Error {
	switch inference.KindOf(err) {
	case inference.KindCredential:
		return newError(KindUpstreamCredentialFailure, msgInvalidCredential, err)
	case inference.KindQuota:
		return newError(KindUpstreamQuotaFailure, msgBackendQuota, err)
	case inference.KindTransport:
		return newError(KindUpstreamUnavailable, msgBackendUnavailable, err)
	default:
		return newError(KindUpstreamUnavailable, generateFailureMessage(err), err)
	}
}

// generateFailureMessage returns the backend's own message for unclassified
// generation failures.
func generateFailureMessage(err error) string {
	var ierr *inference.Error
	if errors.As(err, &ierr) && ierr.Message != "" {
		return ierr.Message
	}
	return msgInternal
}
