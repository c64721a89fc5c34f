package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/logging"
)

// DefaultMaxOutputChars bounds the serialized size of one tool result.
const DefaultMaxOutputChars = 200_000

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	MaxOutputChars int
	Logger         logging.Logger
}

// Invoker executes model-requested tool calls against a catalog. Calls run
// one after another in request order; failures never escape and are folded
// into tool messages instead.
type Invoker struct {
	catalog  *Catalog
	provider Provider
	opts     InvokerOptions
}

// NewInvoker creates an invoker. provider receives every call that resolves
// in catalog.
func NewInvoker(catalog *Catalog, provider Provider, optFns ...func(o *InvokerOptions)) *Invoker {
	opts := InvokerOptions{
		MaxOutputChars: DefaultMaxOutputChars,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxOutputChars <= 0 {
		opts.MaxOutputChars = DefaultMaxOutputChars
	}
	return &Invoker{catalog: catalog, provider: provider, opts: opts}
}

// Catalog returns the invoker's tool catalog.
func (inv *Invoker) Catalog() *Catalog { return inv.catalog }

// Outcome summarizes one batch of tool calls.
type Outcome struct {
	// Messages holds exactly one tool message per call, in call order.
	Messages []core.ToolMessage
	// SchemaMismatch is set when any call failed schema conformance.
	SchemaMismatch bool
	// Failures counts calls that did not succeed, including unknown tools.
	Failures int
}

// Invoke runs calls sequentially. The only error returned is context
// cancellation observed between calls.
func (inv *Invoker) Invoke(ctx context.Context, calls []core.ToolCall) (Outcome, error) {
	out := Outcome{Messages: make([]core.ToolMessage, 0, len(calls))}
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		text, err := inv.invokeOne(ctx, call)
		if err != nil {
			out.Failures++
			if IsSchemaMismatch(err) {
				out.SchemaMismatch = true
			}
		}
		out.Messages = append(out.Messages, core.ToolMessage{Text: text, CallID: call.ID})
	}
	return out, nil
}

func (inv *Invoker) invokeOne(ctx context.Context, call core.ToolCall) (string, error) {
	logger := inv.opts.Logger

	if _, ok := inv.catalog.Lookup(call.Name); !ok {
		logger.Warn("tool.invoke.not_found", "tool", call.Name, "call_id", call.ID)
		return "Tool not found: " + call.Name, NewToolError(call.Name, "Tool not found: "+call.Name, CodeNotFound)
	}

	start := time.Now()
	result, err := inv.call(ctx, call)
	dur := time.Since(start)
	if ev, ok := logger.(logging.Events); ok {
		ev.LogToolCall(call.Name, dur, err == nil, err)
	}
	if err != nil {
		logger.Warn("tool.invoke.failed",
			"tool", call.Name,
			"call_id", call.ID,
			"duration_ms", dur.Milliseconds(),
			"schema_mismatch", IsSchemaMismatch(err),
			"error", ErrorMessage(err),
		)
		return fmt.Sprintf("Tool '%s' failed: %s", call.Name, ErrorMessage(err)), err
	}

	text := Truncate(Stringify(result), inv.opts.MaxOutputChars)
	logger.Info("tool.invoke.executed", "tool", call.Name, "call_id", call.ID, "duration_ms", dur.Milliseconds(), "chars", utf8.RuneCountInString(text))
	return text, nil
}

// call validates and executes one call, converting panics to errors.
func (inv *Invoker) call(ctx context.Context, call core.ToolCall) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewToolError(call.Name, fmt.Sprintf("panic: %v", r), CodeExecution)
			if wl, ok := inv.opts.Logger.(*logging.WhisperLogger); ok {
				wl.ErrorWithStack(err, "tool.invoke.panic", "tool", call.Name, "call_id", call.ID)
			} else {
				inv.opts.Logger.Error("tool.invoke.panic", "tool", call.Name, "call_id", call.ID, "recover", fmt.Sprint(r))
			}
		}
	}()

	if err := inv.catalog.Validate(call.Name, call.Arguments); err != nil {
		return nil, err
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return inv.provider.Invoke(ctx, call.Name, args)
}

// Stringify renders a tool result as text: strings pass through, byte
// slices are read as UTF-8 and everything else, nil included, is encoded as
// JSON.
func Stringify(v any) string {
	switch r := v.(type) {
	case nil:
		return "null"
	case string:
		return r
	case []byte:
		return string(r)
	case json.RawMessage:
		return string(r)
	case fmt.Stringer:
		return r.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Truncate keeps the first max characters of text and appends a marker
// reporting how many were omitted. Characters are counted as runes.
func Truncate(text string, max int) string {
	n := utf8.RuneCountInString(text)
	if n <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + fmt.Sprintf("\n...[truncated %d chars]", n-max)
}

// NextRetryCount applies the retry accounting rule: a batch with a schema
// mismatch raises the counter by one up to a cap of 1; any other batch
// resets it to 0.
func NextRetryCount(prev int, schemaMismatch bool) int {
	if schemaMismatch && prev < 1 {
		return prev + 1
	}
	if schemaMismatch {
		return prev
	}
	return 0
}
