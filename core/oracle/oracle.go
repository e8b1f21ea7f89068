// Package oracle defines the advisory reasoning capability.
//
// An oracle is fallible and replaceable: every caller converts a failure into
// a documented sentinel, so nothing here may abort an estimation run.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	ferrors "fibre-cost/internal/errors"
	"fibre-cost/internal/metrics"
)

// Kind names the pipeline stage a prompt belongs to
type Kind string

const (
	KindBuildMethod Kind = "build_method"
	KindCostReview  Kind = "cost_review"
	KindRisk        Kind = "risk"
	KindValidation  Kind = "validation"
	KindStrategy    Kind = "strategy"
)

// Prompt is a single oracle request
type Prompt struct {
	Kind        Kind
	Text        string
	Temperature float64

	// MaxTokens bounds free-text replies; zero leaves it to the provider
	MaxTokens int
}

// Oracle answers structured and free-text questions
type Oracle interface {
	// Judge returns a structured JSON judgment
	Judge(ctx context.Context, p Prompt) (map[string]any, error)

	// Narrate returns free text
	Narrate(ctx context.Context, p Prompt) (string, error)
}

// ExtractJSON parses text as a JSON object. If strict parsing fails it tries
// the span from the first '{' to the last '}' before giving up.
func ExtractJSON(text string) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err == nil && out != nil {
		return out, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("malformed JSON in reply: %w", err)
	}
	return out, nil
}

// Unavailable is an oracle that always fails, routing every stage to its fallback
type Unavailable struct {
	Reason string
}

// Judge always fails
func (u Unavailable) Judge(ctx context.Context, p Prompt) (map[string]any, error) {
	return nil, u.err()
}

// Narrate always fails
func (u Unavailable) Narrate(ctx context.Context, p Prompt) (string, error) {
	return "", u.err()
}

func (u Unavailable) err() error {
	reason := u.Reason
	if reason == "" {
		reason = "no oracle configured"
	}
	return ferrors.Oracle("oracle unavailable", fmt.Errorf("%s", reason))
}

// instrumented records call counts and latency for any oracle
type instrumented struct {
	next Oracle
}

// Instrument wraps o with Prometheus call metrics
func Instrument(o Oracle) Oracle {
	return &instrumented{next: o}
}

func (i *instrumented) Judge(ctx context.Context, p Prompt) (map[string]any, error) {
	start := time.Now()
	out, err := i.next.Judge(ctx, p)
	metrics.ObserveOracleCall(string(p.Kind), outcome(err), time.Since(start))
	return out, err
}

func (i *instrumented) Narrate(ctx context.Context, p Prompt) (string, error) {
	start := time.Now()
	out, err := i.next.Narrate(ctx, p)
	metrics.ObserveOracleCall(string(p.Kind), outcome(err), time.Since(start))
	return out, err
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
