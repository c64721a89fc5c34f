// Package extract infers conversation context updates (active org, repo,
// branch) from the latest user utterance with a JSON-constrained model call.
//
// Extraction is best effort. Each turn makes at most three attempts: a
// direct prompt, a retry flagged as following invalid output, and a repair
// prompt fed the raw text of the retry. When all three fail the result
// carries no update and the prior context stays untouched.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/logging"
	"github.com/hupe1980/ghwhisper/model"
)

// MaxAttempts is the number of model calls an extraction may make.
const MaxAttempts = 3

// Outcome distinguishes a failed extraction from a successful one.
type Outcome int

const (
	// NoUpdate means extraction was skipped or every attempt was unusable.
	NoUpdate Outcome = iota
	// Updated means an attempt produced a valid update, possibly empty.
	Updated
)

func (o Outcome) String() string {
	if o == Updated {
		return "updated"
	}
	return "no_update"
}

// Result is the outcome of one extraction.
type Result struct {
	Outcome Outcome
	// Update is set only for Updated. An empty map is a successful no-op.
	Update core.ContextUpdate
	// Attempts is the number of model calls made.
	Attempts int
	// Usage sums the usage reported by every attempt.
	Usage core.TokenUsage
}

// IsNoOp reports a successful extraction that changes nothing.
func (r Result) IsNoOp() bool { return r.Outcome == Updated && len(r.Update) == 0 }

// Options configures an Extractor.
type Options struct {
	Logger logging.Logger
}

// Extractor runs the bounded extraction protocol against a model.
type Extractor struct {
	model model.Model
	opts  Options
}

// New creates an extractor. The model should be configured for
// deterministic output (temperature 0).
func New(m model.Model, optFns ...func(o *Options)) *Extractor {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Extractor{model: m, opts: opts}
}

// Extract infers a context update from utterance given the current context.
// Unusable output and model failures are absorbed; the only error returned
// is cancellation of ctx.
func (e *Extractor) Extract(ctx context.Context, current map[core.ContextKey]string, utterance string) (Result, error) {
	var res Result
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return res, nil
	}

	prompt := BuildPrompt(current, utterance)
	prompts := []func(lastRaw string) string{
		func(string) string { return prompt },
		func(string) string { return BuildRetryPrompt(prompt) },
		BuildRepairPrompt,
	}

	var raw string
	for i, build := range prompts {
		text, err := e.attempt(ctx, &res, build(raw))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			e.opts.Logger.Warn("extract.attempt.failed", "attempt", i+1, "error", err.Error())
			raw = ""
			continue
		}
		raw = text

		upd, perr := ParseUpdate(text)
		if perr != nil {
			e.opts.Logger.Debug("extract.attempt.invalid", "attempt", i+1, "error", perr.Error())
			continue
		}
		res.Outcome = Updated
		res.Update = upd
		e.opts.Logger.Debug("extract.completed", "attempt", i+1, "keys", len(upd))
		return res, nil
	}

	e.opts.Logger.Info("extract.exhausted", "attempts", res.Attempts)
	return res, nil
}

func (e *Extractor) attempt(ctx context.Context, res *Result, prompt string) (string, error) {
	res.Attempts++
	start := time.Now()
	resp, err := model.Complete(ctx, e.model, model.Request{
		Messages: []core.Message{core.SystemMessage{Text: prompt}},
		JSON:     true,
	}, nil)
	if err != nil {
		return "", err
	}
	res.Usage = res.Usage.Add(resp.Usage)
	e.opts.Logger.Debug("extract.attempt.completed", "attempt", res.Attempts, "duration_ms", time.Since(start).Milliseconds())
	return resp.Text, nil
}
