package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mohammadjaf013/findlanqbot/internal/models"
	"github.com/mohammadjaf013/findlanqbot/internal/providers"
	"github.com/mohammadjaf013/findlanqbot/internal/providers/llm"
	"github.com/mohammadjaf013/findlanqbot/internal/retry"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

// Composer turns retrieved context into an answer through the language model.
type Composer struct {
	provider       llm.Provider
	policy         retry.Policy
	attemptTimeout time.Duration
	log            *logrus.Logger
}

// NewComposer wires a provider; nil means extractive answers only.
func NewComposer(p llm.Provider, policy retry.Policy, attemptTimeout time.Duration, log *logrus.Logger) *Composer {
	if log == nil {
		log = logrus.New()
	}
	return &Composer{provider: p, policy: policy, attemptTimeout: attemptTimeout, log: log}
}

func (c *Composer) Answer(ctx context.Context, question string, chunks []Result, history []models.Message) (string, error) {
	const op = "Composer.Answer"

	if strings.TrimSpace(question) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "question is required", nil)
	}
	if c.provider == nil {
		return ExtractiveAnswer(chunks), nil
	}

	prompt := BuildPrompt(question, chunks, history)
	var answer string
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		actx, cancel := c.attemptContext(ctx)
		defer cancel()

		out, err := c.provider.Generate(actx, prompt)
		if err != nil {
			c.logAttempt(attempt, err)
			return err
		}
		answer = out
		return nil
	})
	if err != nil {
		return "", c.translate(ctx, op, err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", utils.E(utils.CodeInternal, op, "the assistant returned an empty answer", nil)
	}
	return answer, nil
}

// Stream forwards answer chunks to onChunk as they arrive. A failed attempt is
// retried only while nothing has been forwarded yet.
func (c *Composer) Stream(ctx context.Context, question string, chunks []Result, history []models.Message, onChunk func(string) error) (string, error) {
	const op = "Composer.Stream"

	if strings.TrimSpace(question) == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "question is required", nil)
	}
	if c.provider == nil {
		answer := ExtractiveAnswer(chunks)
		if err := onChunk(answer); err != nil {
			return "", utils.E(utils.CodeInternal, op, "failed to deliver answer", err)
		}
		return answer, nil
	}

	prompt := BuildPrompt(question, chunks, history)
	var full strings.Builder
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		actx, cancel := c.attemptContext(ctx)
		defer cancel()

		full.Reset()
		emitted := false
		parts, errs := c.provider.StreamAnswer(actx, prompt)
		for part := range parts {
			emitted = true
			full.WriteString(part)
			if err := onChunk(part); err != nil {
				cancel()
				for range parts {
				}
				return retry.Permanent(err)
			}
		}
		if err := <-errs; err != nil {
			c.logAttempt(attempt, err)
			if emitted {
				return retry.Permanent(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", c.translate(ctx, op, err)
	}
	return full.String(), nil
}

func (c *Composer) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.attemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.attemptTimeout)
}

func (c *Composer) logAttempt(attempt int, err error) {
	c.log.WithError(err).WithFields(logrus.Fields{
		"attempt":   attempt,
		"status":    providers.StatusCode(err),
		"transient": providers.IsTransient(err),
	}).Warn("generation attempt failed")
}

func (c *Composer) translate(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return utils.E(utils.CodeTimeout, op, "the assistant took too long to answer", err)
		}
		return utils.E(utils.CodeTimeout, op, "request cancelled", err)
	}
	if errors.Is(err, retry.ErrExhausted) || providers.IsTransient(err) {
		return utils.E(utils.CodeUnavailable, op, utils.MsgAssistantUnavailable, err)
	}
	return utils.E(utils.CodeInternal, op, "the assistant could not answer this request", err)
}
