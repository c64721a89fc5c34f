package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/extract"
	"github.com/hupe1980/ghwhisper/graph"
	"github.com/hupe1980/ghwhisper/logging"
	"github.com/hupe1980/ghwhisper/model"
	"github.com/hupe1980/ghwhisper/skill"
	"github.com/hupe1980/ghwhisper/tool"
)

// Pipeline states.
const (
	PreExtract graph.State = "PRE_EXTRACT"
	Agent      graph.State = "AGENT"
	Tools      graph.State = "TOOLS"
	End                    = graph.End
)

const (
	routeTools = "tools"
	routeEnd   = "end"
)

// Reasons recorded for tool calls a failed turn never ran.
const (
	ReasonIterationLimit = "iteration limit reached"
	ReasonCancelled      = "turn cancelled"
	ReasonFailed         = "turn failed"
)

// DefaultMaxIterations is the number of AGENT visits allowed per turn.
const DefaultMaxIterations = 25

// ErrIterationLimit is returned when the model keeps requesting tools past
// MaxIterations.
var ErrIterationLimit = graph.ErrStepLimit

// Options configures a Pipeline.
type Options struct {
	// MaxIterations bounds AGENT visits per turn. The graph step limit is
	// derived from it.
	MaxIterations int
	// Extractor is optional. Without it PRE_EXTRACT passes through.
	Extractor *extract.Extractor
	// Skills is optional. Without it the skill section is omitted.
	Skills *skill.Selector
	Logger logging.Logger
}

// Pipeline runs turns against one model and tool set.
type Pipeline struct {
	model   model.Model
	invoker *tool.Invoker
	tools   []model.ToolDefinition
	opts    Options
}

// New creates a pipeline. invoker may be nil for a tool-less assistant.
func New(m model.Model, invoker *tool.Invoker, optFns ...func(o *Options)) *Pipeline {
	opts := Options{
		MaxIterations: DefaultMaxIterations,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	p := &Pipeline{model: m, invoker: invoker, opts: opts}
	if invoker != nil {
		p.tools = model.ToolDefinitions(invoker.Catalog().Descriptors())
	}
	return p
}

// Turn summarizes one completed or failed turn.
type Turn struct {
	ID         string
	Steps      int
	Iterations int
	Usage      core.TokenUsage
	Duration   time.Duration
}

// TurnOptions configures a single Run.
type TurnOptions struct {
	// OnPartial receives assistant text fragments as the model streams them.
	// When nil the model is called without streaming.
	OnPartial func(text string)
	// Observer sees every executed graph step.
	Observer func(graph.Step)
}

// Run appends the utterance to st and drives the state machine to END.
// st is mutated in place. Node updates applied before a failure are kept.
func (p *Pipeline) Run(ctx context.Context, st *core.ConversationState, utterance string, optFns ...func(o *TurnOptions)) (Turn, error) {
	var topts TurnOptions
	for _, fn := range optFns {
		fn(&topts)
	}

	turn := Turn{ID: core.NewID()}
	logger := p.opts.Logger
	if wl, ok := logger.(*logging.WhisperLogger); ok {
		logger = wl.WithThread(st.ThreadID, turn.ID).WithContext("model", p.model.Info().Name)
	}

	before := st.Usage
	start := time.Now()
	st.Apply(core.Update{Messages: []core.Message{core.HumanMessage{Text: utterance}}})

	g := p.graph(logger, topts, func(s graph.Step) {
		turn.Steps++
		if s.Node == Agent {
			turn.Iterations++
		}
		if topts.Observer != nil {
			topts.Observer(s)
		}
	})
	err := g.Run(ctx, st)
	if err != nil {
		if n := closePending(st, failureReason(err)); n > 0 {
			logger.Warn("pipeline.tool_calls.unanswered", "thread_id", st.ThreadID, "count", n, "reason", failureReason(err))
		}
	}

	turn.Duration = time.Since(start)
	turn.Usage = core.TokenUsage{
		PromptTokens:     st.Usage.PromptTokens - before.PromptTokens,
		CompletionTokens: st.Usage.CompletionTokens - before.CompletionTokens,
		TotalTokens:      st.Usage.TotalTokens - before.TotalTokens,
	}
	if ev, ok := logger.(logging.Events); ok {
		ev.LogTurn(st.ThreadID, turn.Steps, turn.Duration, err == nil, err)
	} else if err != nil {
		logger.Error("pipeline.turn.failed", "thread_id", st.ThreadID, "error", err.Error())
	}
	if errors.Is(err, graph.ErrStepLimit) {
		logger.Warn("pipeline.iteration_limit", "thread_id", st.ThreadID, "max_iterations", p.opts.MaxIterations)
	}
	return turn, err
}

// graph wires the nodes for one turn. The transition table is fixed; only
// the streaming sink and observer vary per turn.
func (p *Pipeline) graph(logger logging.Logger, topts TurnOptions, observer func(graph.Step)) *graph.Graph {
	g := graph.New(PreExtract, func(o *graph.Options) {
		// PRE_EXTRACT plus MaxIterations AGENT visits with a TOOLS step between each pair.
		o.MaxSteps = 2 * p.opts.MaxIterations
		o.Observer = observer
		o.Logger = logger
	})
	g.AddNode(PreExtract, func(ctx context.Context, st *core.ConversationState) (core.Update, error) {
		return p.preExtract(ctx, st, logger)
	})
	g.AddNode(Agent, func(ctx context.Context, st *core.ConversationState) (core.Update, error) {
		return p.agent(ctx, st, logger, topts.OnPartial)
	})
	g.AddNode(Tools, p.runTools)
	g.AddEdge(PreExtract, Agent)
	g.AddConditionalEdges(Agent, RouteAfterAgent, map[string]graph.State{
		routeTools: Tools,
		routeEnd:   End,
	})
	g.AddEdge(Tools, Agent)
	return g
}

// RouteAfterAgent routes to TOOLS when the latest message is an AI message
// requesting at least one tool call, and to END otherwise.
func RouteAfterAgent(st *core.ConversationState) string {
	if ai, ok := st.LastMessage().(core.AIMessage); ok && ai.HasToolCalls() {
		return routeTools
	}
	return routeEnd
}

func (p *Pipeline) preExtract(ctx context.Context, st *core.ConversationState, logger logging.Logger) (core.Update, error) {
	if p.opts.Extractor == nil {
		return core.Update{}, nil
	}
	res, err := p.opts.Extractor.Extract(ctx, st.Context, core.LastHumanText(st.Messages))
	if err != nil {
		return core.Update{}, err
	}

	var upd core.Update
	if res.Outcome == extract.Updated && len(res.Update) > 0 {
		upd.Context = res.Update
		logger.Info("pipeline.context.updated", "keys", len(res.Update), "attempts", res.Attempts)
	}
	if !res.Usage.IsZero() {
		usage := res.Usage
		upd.Usage = &usage
	}
	return upd, nil
}

func (p *Pipeline) agent(ctx context.Context, st *core.ConversationState, logger logging.Logger, onPartial func(string)) (core.Update, error) {
	var skills string
	if utterance := core.LastHumanText(st.Messages); utterance != "" && p.opts.Skills != nil {
		rendered, err := p.opts.Skills.Render(utterance)
		if err != nil {
			logger.Warn("pipeline.skills.failed", "error", err.Error())
		}
		skills = rendered
	}

	system, err := SystemPrompt(st, skills)
	if err != nil {
		return core.Update{}, err
	}

	req := model.Request{
		Instructions: system,
		Messages:     st.Messages,
		Tools:        p.tools,
		Stream:       onPartial != nil,
	}
	var sink func(model.Response)
	if onPartial != nil {
		sink = func(r model.Response) { onPartial(r.Text) }
	}

	info := p.model.Info()
	start := time.Now()
	resp, err := model.Complete(ctx, p.model, req, sink)
	dur := time.Since(start)
	if ev, ok := logger.(logging.Events); ok {
		tokens := 0
		if resp.Usage != nil {
			tokens = resp.Usage.TotalTokens
		}
		ev.LogLLMCall(info.Name, tokens, dur, err == nil, err)
	}
	if err != nil {
		if ctx.Err() != nil {
			return core.Update{}, ctx.Err()
		}
		return core.Update{}, &UpstreamError{Model: info.Name, Err: err}
	}

	msg := resp.Message()
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].ID == "" {
			msg.ToolCalls[i].ID = core.NewID()
		}
	}
	return core.Update{Messages: []core.Message{msg}, Usage: resp.Usage}, nil
}

func (p *Pipeline) runTools(ctx context.Context, st *core.ConversationState) (core.Update, error) {
	ai, ok := st.LastMessage().(core.AIMessage)
	if !ok || !ai.HasToolCalls() {
		return core.Update{}, nil
	}

	var (
		out tool.Outcome
		err error
	)
	if p.invoker == nil {
		for _, c := range ai.ToolCalls {
			out.Messages = append(out.Messages, core.ToolMessage{Text: "Tool not found: " + c.Name, CallID: c.ID})
		}
	} else {
		out, err = p.invoker.Invoke(ctx, ai.ToolCalls)
	}

	msgs := make([]core.Message, 0, len(ai.ToolCalls))
	for _, m := range out.Messages {
		msgs = append(msgs, m)
	}
	if err != nil {
		// Calls the batch never reached still need an answer.
		for _, c := range ai.ToolCalls[len(out.Messages):] {
			msgs = append(msgs, notRun(c, failureReason(err)))
		}
	}
	next := tool.NextRetryCount(st.ToolRetryCount, out.SchemaMismatch)
	return core.Update{Messages: msgs, ToolRetryCount: &next}, err
}

// closePending answers every unanswered call of the trailing AI message so
// the saved history stays acceptable to the model. It returns the number of
// calls closed.
func closePending(st *core.ConversationState, reason string) int {
	pending := core.PendingToolCalls(st.Messages)
	if len(pending) == 0 {
		return 0
	}
	msgs := make([]core.Message, 0, len(pending))
	for _, c := range pending {
		msgs = append(msgs, notRun(c, reason))
	}
	st.Apply(core.Update{Messages: msgs})
	return len(pending)
}

func notRun(c core.ToolCall, reason string) core.ToolMessage {
	return core.ToolMessage{Text: fmt.Sprintf("Tool '%s' was not run: %s", c.Name, reason), CallID: c.ID}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, graph.ErrStepLimit):
		return ReasonIterationLimit
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	default:
		return ReasonFailed
	}
}
