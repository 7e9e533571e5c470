// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package inference is the structured-output port to the LLM service.
// Responses are validated against an explicit JSON schema before use;
// free-form text is never trusted.
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonschema"
	"golang.org/x/time/rate"

	"github.com/pdiddy/arxiv-digest/pkg/types"
)

// ErrSchemaInvalid reports that the model output failed schema
// validation on every attempt.
var ErrSchemaInvalid = errors.New("inference output failed schema validation")

// ErrBudgetExhausted reports that the run's call ceiling was hit.
// Callers degrade gracefully instead of failing the run.
var ErrBudgetExhausted = errors.New("inference call budget exhausted")

// Provider is one LLM API dialect. Complete sends a single prompt and
// returns the raw text of the response. Providers own transport-level
// retries; schema-validation retries belong to the Service.
type Provider interface {
	Name() string
	Complete(ctx context.Context, model, system, user string, temperature float64) (string, error)
}

// Service wraps a Provider with pacing, budget accounting, schema
// validation, and repair re-prompting.
type Service struct {
	provider Provider
	limiter  *rate.Limiter
	budget   *Budget
	retry    types.RetryPolicy
	temp     float64
}

// NewService builds a Service from the LLM and budget configuration.
func NewService(p Provider, cfg types.LLMConfig, budget types.BudgetConfig) *Service {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = types.DefaultRetryPolicy
	}
	temp := 0.7
	if cfg.Deterministic {
		temp = 0
	}
	return &Service{
		provider: p,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		budget:   NewBudget(budget.MaxCalls),
		retry:    retry,
		temp:     temp,
	}
}

// Budget exposes the service's call accounting.
func (s *Service) Budget() *Budget { return s.budget }

// WithRetry returns a copy of the service using a different retry
// policy while sharing the limiter and budget. Stages with their own
// retry configuration use this instead of mutating shared state.
func (s *Service) WithRetry(p types.RetryPolicy) *Service {
	if p.MaxAttempts <= 0 {
		return s
	}
	copied := *s
	copied.retry = p
	return &copied
}

// Structured sends a prompt expecting a JSON response conforming to
// schema, validates it, and decodes it into out. Transport failures
// are retried with the policy's backoff and jitter; a schema-invalid
// response is retried with a stricter repair re-prompt. The returned
// attempt count lets callers audit retries. A terminal validation
// failure wraps ErrSchemaInvalid so callers can mark the item failed
// without aborting their batch.
func (s *Service) Structured(ctx context.Context, model, system, user string, schema []byte, out any) (int, error) {
	compiled, err := jsonschema.NewCompiler().Compile(schema)
	if err != nil {
		return 0, fmt.Errorf("compiling schema: %w", err)
	}

	prompt := user + "\n\nReturn ONLY valid JSON conforming to this schema:\n" + string(schema)

	var lastErr error
	schemaFailure := false
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			case <-time.After(s.retry.Backoff(attempt - 1)):
			}
		}

		if !s.budget.TryAcquire() {
			return attempt - 1, ErrBudgetExhausted
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return attempt - 1, err
		}

		text, err := s.provider.Complete(ctx, model, system, prompt, s.temp)
		if err != nil {
			lastErr = err
			schemaFailure = false
			continue
		}

		raw := stripFences(text)
		if verr := validate(compiled, raw); verr != nil {
			lastErr = verr
			schemaFailure = true
			// Stricter repair re-prompt carrying the validation error.
			prompt = fmt.Sprintf(
				"Your previous output was invalid: %v\n\nRe-output ONLY valid JSON matching the schema exactly. No markdown, no commentary.\n\nOriginal task:\n%s\n\nSchema:\n%s",
				verr, user, string(schema))
			continue
		}

		if err := json.Unmarshal([]byte(raw), out); err != nil {
			lastErr = err
			schemaFailure = true
			continue
		}
		return attempt, nil
	}

	if schemaFailure {
		return s.retry.MaxAttempts, fmt.Errorf("%w after %d attempts: %v", ErrSchemaInvalid, s.retry.MaxAttempts, lastErr)
	}
	return s.retry.MaxAttempts, fmt.Errorf("after %d attempts: %w", s.retry.MaxAttempts, lastErr)
}

// Narrative sends a prompt expecting a single JSON object with one
// string field and returns that field's value. Used for trend
// summaries and spotlight introductions.
func (s *Service) Narrative(ctx context.Context, model, system, user, field string) (string, error) {
	schema := fmt.Sprintf(
		`{"type":"object","properties":{%q:{"type":"string"}},"required":[%q],"additionalProperties":false}`,
		field, field)

	var payload map[string]string
	if _, err := s.Structured(ctx, model, system, user, []byte(schema), &payload); err != nil {
		return "", err
	}
	return strings.TrimSpace(payload[field]), nil
}

// validate runs schema validation over raw JSON.
func validate(schema *jsonschema.Schema, raw string) error {
	result := schema.ValidateJSON([]byte(raw))
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}

// stripFences removes a Markdown code fence wrapper if the model added
// one, then trims to the outermost JSON object or array.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.Trim(s, "`")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(s)
	}
	if start := strings.IndexAny(s, "{["); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexAny(s, "}]"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return s
}
