package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/mohammadjaf013/findlanqbot/internal/retry"
)

type Options struct {
	// Timeout bounds a single provider call.
	Timeout time.Duration
	// Interval spaces provider calls made by EmbedMany.
	Interval time.Duration
	Retry    retry.Policy
	Logger   *logrus.Logger
}

// Embedder maps text to a fixed-length vector. Provider failures degrade to
// the hash fallback instead of failing the caller.
type Embedder struct {
	provider Provider
	fallback *HashEmbedder
	dim      int
	timeout  time.Duration
	policy   retry.Policy
	limiter  *rate.Limiter
	log      *logrus.Logger
}

// NewEmbedder builds an Embedder; a nil provider means fallback-only mode.
func NewEmbedder(p Provider, dim int, opts Options) *Embedder {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	limit := rate.Inf
	if opts.Interval > 0 {
		limit = rate.Every(opts.Interval)
	}
	return &Embedder{
		provider: p,
		fallback: NewHashEmbedder(dim),
		dim:      dim,
		timeout:  opts.Timeout,
		policy:   opts.Retry,
		limiter:  rate.NewLimiter(limit, 1),
		log:      opts.Logger,
	}
}

func (e *Embedder) Dim() int { return e.dim }

// Degraded reports whether every call goes to the fallback.
func (e *Embedder) Degraded() bool { return e.provider == nil }

func (e *Embedder) Embed(ctx context.Context, text string) (Embedding, error) {
	if e.provider == nil {
		return Embedding{Values: e.fallback.Vector(text), Fallback: true}, nil
	}

	var vec []float32
	err := e.policy.Do(ctx, func(ctx context.Context, _ int) error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		v, err := e.provider.EmbedContent(callCtx, text)
		if err != nil {
			return err
		}
		if len(v) != e.dim {
			return retry.Permanent(fmt.Errorf("provider returned %d dimensions, want %d", len(v), e.dim))
		}
		vec = v
		return nil
	})
	if err == nil {
		return Embedding{Values: vec}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Embedding{}, ctxErr
	}

	e.log.WithError(err).WithField("text_len", len(text)).Warn("embedding provider failed, using hash fallback")
	return Embedding{Values: e.fallback.Vector(text), Fallback: true}, nil
}

// EmbedMany embeds texts one by one; out[i] belongs to texts[i].
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([]Embedding, error) {
	out := make([]Embedding, 0, len(texts))
	for _, t := range texts {
		if e.provider != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		emb, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, emb)
	}
	return out, nil
}
