package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/extract"
	"github.com/hupe1980/ghwhisper/graph"
	"github.com/hupe1980/ghwhisper/internal/testutil"
	"github.com/hupe1980/ghwhisper/skill"
	"github.com/hupe1980/ghwhisper/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repoSchema = `{"type":"object","properties":{"repo":{"type":"string"}},"required":["repo"]}`

func newInvoker(t *testing.T, p *testutil.FakeProvider) *tool.Invoker {
	t.Helper()
	cat, err := tool.NewCatalog(context.Background(), p)
	require.NoError(t, err)
	return tool.NewInvoker(cat, p)
}

func fakeTools() *testutil.FakeProvider {
	return testutil.NewFakeProvider().
		Add("list_issues", repoSchema, func(args map[string]any) (any, error) {
			return "2 open issues in " + args["repo"].(string), nil
		}).
		Add("get_me", "", func(map[string]any) (any, error) {
			return map[string]any{"login": "octocat"}, nil
		})
}

func nodes(steps []graph.Step) []graph.State {
	out := make([]graph.State, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Node)
	}
	return out
}

func observe(steps *[]graph.Step) func(o *TurnOptions) {
	return func(o *TurnOptions) { o.Observer = func(s graph.Step) { *steps = append(*steps, s) } }
}

func TestRunWithoutToolCallsEnds(t *testing.T) {
	m := testutil.NewScriptedModel(testutil.Reply("Hello!", 10, 5))
	p := New(m, newInvoker(t, fakeTools()))

	st := core.NewConversationState("t1")
	var steps []graph.Step
	turn, err := p.Run(context.Background(), st, "hi", observe(&steps))
	require.NoError(t, err)

	assert.Equal(t, []graph.State{PreExtract, Agent}, nodes(steps))
	assert.Equal(t, End, steps[1].Next)
	assert.Equal(t, 1, turn.Iterations)
	assert.Equal(t, 2, turn.Steps)
	require.Len(t, st.Messages, 2)
	answer, found := core.LastAIText(st.Messages)
	require.True(t, found)
	assert.Equal(t, "Hello!", answer)
	assert.Equal(t, core.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, st.Usage)
	assert.Equal(t, st.Usage, turn.Usage)
}

func TestRunToolLoop(t *testing.T) {
	provider := fakeTools()
	m := testutil.NewScriptedModel(
		testutil.ReplyTools(testutil.Call("c1", "list_issues", map[string]any{"repo": "a/b"}), testutil.Call("c2", "get_me", nil)),
		testutil.Reply("There are 2 open issues.", 20, 5),
	)
	p := New(m, newInvoker(t, provider))

	st := core.NewConversationState("t1")
	var steps []graph.Step
	_, err := p.Run(context.Background(), st, "issues?", observe(&steps))
	require.NoError(t, err)

	assert.Equal(t, []graph.State{PreExtract, Agent, Tools, Agent}, nodes(steps))
	assert.Equal(t, Agent, steps[2].Next)

	// human, ai(tool calls), tool, tool, ai
	require.Len(t, st.Messages, 5)
	t1 := st.Messages[2].(core.ToolMessage)
	t2 := st.Messages[3].(core.ToolMessage)
	assert.Equal(t, "c1", t1.CallID)
	assert.Equal(t, "2 open issues in a/b", t1.Text)
	assert.Equal(t, "c2", t2.CallID)
	assert.JSONEq(t, `{"login":"octocat"}`, t2.Text)
	assert.Equal(t, 0, st.ToolRetryCount)

	calls := provider.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "list_issues", calls[0].Name)
	assert.Equal(t, "get_me", calls[1].Name)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Tools, 2)
	assert.Len(t, reqs[1].Messages, 4)
}

func TestRunUnknownToolIsAbsorbed(t *testing.T) {
	m := testutil.NewScriptedModel(
		testutil.ReplyTools(testutil.Call("c1", "delete_repo", nil)),
		testutil.Reply("Sorry.", 1, 1),
	)
	p := New(m, newInvoker(t, fakeTools()))

	st := core.NewConversationState("t1")
	_, err := p.Run(context.Background(), st, "delete it")
	require.NoError(t, err)
	assert.Equal(t, "Tool not found: delete_repo", core.MessageText(st.Messages[2]))
	assert.Equal(t, 0, st.ToolRetryCount)
}

func TestRetryCountCapsAcrossTurns(t *testing.T) {
	m := testutil.NewScriptedModel(
		testutil.ReplyTools(testutil.Call("c1", "list_issues", map[string]any{})),
		testutil.Reply("Which repo?", 1, 1),
		testutil.ReplyTools(testutil.Call("c2", "list_issues", map[string]any{"owner": "x"})),
		testutil.Reply("Still need a repo.", 1, 1),
		testutil.ReplyTools(testutil.Call("c3", "list_issues", map[string]any{"repo": "a/b"})),
		testutil.Reply("Done.", 1, 1),
	)
	p := New(m, newInvoker(t, fakeTools()))
	st := core.NewConversationState("t1")

	_, err := p.Run(context.Background(), st, "list issues")
	require.NoError(t, err)
	assert.Equal(t, 1, st.ToolRetryCount)
	assert.Contains(t, core.MessageText(st.Messages[2]), tool.SchemaMismatchMarker)

	_, err = p.Run(context.Background(), st, "try again")
	require.NoError(t, err)
	assert.Equal(t, 1, st.ToolRetryCount)

	// The retry hint is visible to the model while the counter is set.
	reqs := m.Requests()
	assert.Contains(t, reqs[2].Instructions, RetryHint)

	_, err = p.Run(context.Background(), st, "repo a/b")
	require.NoError(t, err)
	assert.Equal(t, 0, st.ToolRetryCount)
}

func TestRunExtractionUpdatesContext(t *testing.T) {
	ex := testutil.NewScriptedModel(
		testutil.Reply(`{"activeRepo":"open-telemetry/opentelemetry-collector"}`, 50, 5),
		testutil.Reply(`{}`, 50, 1),
	)
	m := testutil.NewScriptedModel(testutil.Reply("Noted.", 10, 2), testutil.Reply("Sure.", 10, 2))
	p := New(m, nil, func(o *Options) { o.Extractor = extract.New(ex) })

	st := testutil.NewStateBuilder("t1").Org("open-telemetry").Branch("main").Build()
	_, err := p.Run(context.Background(), st, "Use repo open-telemetry/opentelemetry-collector")
	require.NoError(t, err)

	assert.Equal(t, map[core.ContextKey]string{
		core.ActiveOrg:    "open-telemetry",
		core.ActiveRepo:   "open-telemetry/opentelemetry-collector",
		core.ActiveBranch: "main",
	}, st.Context)
	assert.Equal(t, 0, st.ToolRetryCount)
	assert.Equal(t, 67, st.Usage.TotalTokens)
	assert.Contains(t, m.Requests()[0].Instructions, "activeRepo=open-telemetry/opentelemetry-collector")

	// A question leaves every key untouched.
	_, err = p.Run(context.Background(), st, "what is open?")
	require.NoError(t, err)
	assert.Len(t, st.Context, 3)
	assert.Equal(t, 67+51+12, st.Usage.TotalTokens)
}

func TestRunExtractionFailureKeepsContext(t *testing.T) {
	ex := testutil.NewScriptedModel(
		testutil.Reply("garbage", 1, 1),
		testutil.Reply("garbage", 1, 1),
		testutil.Reply("garbage", 1, 1),
	)
	m := testutil.NewScriptedModel(testutil.Reply("ok", 1, 1))
	p := New(m, nil, func(o *Options) { o.Extractor = extract.New(ex) })

	st := testutil.NewStateBuilder("t1").Repo("a/b").Build()
	_, err := p.Run(context.Background(), st, "switch to c/d")
	require.NoError(t, err)
	assert.Equal(t, map[core.ContextKey]string{core.ActiveRepo: "a/b"}, st.Context)
	assert.Equal(t, 8, st.Usage.TotalTokens)
}

func TestRunUpstreamFailure(t *testing.T) {
	m := testutil.NewScriptedModel(testutil.Fail(errors.New("503 unavailable")))
	p := New(m, nil)

	st := core.NewConversationState("t1")
	_, err := p.Run(context.Background(), st, "hi")

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "scripted", upErr.Model)
	// The human message stays applied.
	require.Len(t, st.Messages, 1)
}

func TestRunIterationLimit(t *testing.T) {
	m := testutil.NewScriptedModel()
	for i := 0; i < 10; i++ {
		m.Push(testutil.ReplyTools(testutil.Call("", "get_me", nil)))
	}
	p := New(m, newInvoker(t, fakeTools()), func(o *Options) { o.MaxIterations = 3 })

	st := core.NewConversationState("t1")
	turn, err := p.Run(context.Background(), st, "loop forever")
	assert.ErrorIs(t, err, ErrIterationLimit)
	assert.Equal(t, 3, turn.Iterations)
	assert.Len(t, m.Requests(), 3)

	// Missing call ids are filled in and echoed by the tool messages.
	ai := st.Messages[1].(core.AIMessage)
	require.NotEmpty(t, ai.ToolCalls[0].ID)
	assert.Equal(t, ai.ToolCalls[0].ID, st.Messages[2].(core.ToolMessage).CallID)

	// The last AGENT step's calls never ran but are still answered.
	last := st.Messages[len(st.Messages)-1].(core.ToolMessage)
	assert.Equal(t, "Tool 'get_me' was not run: "+ReasonIterationLimit, last.Text)
	assert.Empty(t, testutil.UnansweredCallIDs(st.Messages))
}

func TestRunIterationLimitLeavesUsableHistory(t *testing.T) {
	m := testutil.NewScriptedModel(
		testutil.ReplyTools(testutil.Call("ca", "get_me", nil)),
		testutil.ReplyTools(testutil.Call("cb", "get_me", nil)),
	)
	p := New(m, newInvoker(t, fakeTools()), func(o *Options) { o.MaxIterations = 2 })

	st := core.NewConversationState("t1")
	_, err := p.Run(context.Background(), st, "ping")
	require.ErrorIs(t, err, ErrIterationLimit)
	assert.Empty(t, core.PendingToolCalls(st.Messages))

	m.Push(testutil.Reply("done", 1, 1))
	_, err = p.Run(context.Background(), st, "and now?")
	require.NoError(t, err)

	reqs := m.Requests()
	assert.Empty(t, testutil.UnansweredCallIDs(reqs[len(reqs)-1].Messages))
}

func TestRunCancelledMidBatchAnswersEveryCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := testutil.NewFakeProvider().
		Add("get_me", "", func(map[string]any) (any, error) {
			cancel()
			return "octocat", nil
		}).
		Add("list_issues", repoSchema, func(map[string]any) (any, error) {
			return "[]", nil
		})
	m := testutil.NewScriptedModel(testutil.ReplyTools(
		testutil.Call("x1", "get_me", nil),
		testutil.Call("x2", "list_issues", map[string]any{"repo": "a/b"}),
	))
	p := New(m, newInvoker(t, provider))

	st := core.NewConversationState("t1")
	_, err := p.Run(ctx, st, "who am I and what is open?")
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, st.Messages, 4)
	assert.Equal(t, core.ToolMessage{Text: "octocat", CallID: "x1"}, st.Messages[2])
	assert.Equal(t, core.ToolMessage{Text: "Tool 'list_issues' was not run: " + ReasonCancelled, CallID: "x2"}, st.Messages[3])
	assert.Empty(t, testutil.UnansweredCallIDs(st.Messages))
	assert.Len(t, provider.Calls(), 1)
}

func TestRunStreamsPartials(t *testing.T) {
	m := testutil.NewScriptedModel(testutil.Reply("one two three", 1, 1))
	p := New(m, nil)

	var parts []string
	_, err := p.Run(context.Background(), core.NewConversationState("t1"), "count", func(o *TurnOptions) {
		o.OnPartial = func(s string) { parts = append(parts, s) }
	})
	require.NoError(t, err)
	assert.Equal(t, "one two three", strings.Join(parts, ""))
	assert.True(t, m.Requests()[0].Stream)
}

func TestRunInjectsSkills(t *testing.T) {
	sel := skill.NewSelector(skill.DefaultRegistry(), skill.NewCache(skill.DefaultStore()))
	m := testutil.NewScriptedModel(testutil.Reply("ok", 1, 1))
	p := New(m, nil, func(o *Options) { o.Skills = sel })

	_, err := p.Run(context.Background(), core.NewConversationState("t1"), "show open pull requests")
	require.NoError(t, err)
	instr := m.Requests()[0].Instructions
	assert.Contains(t, instr, "<github_mcp_skill>")
	assert.Contains(t, instr, "## Module: core.md")
	assert.Contains(t, instr, "## Module: issues-prs.md")
}

func TestRouteAfterAgent(t *testing.T) {
	st := testutil.NewStateBuilder("t").Human("hi").AI("hello").Build()
	assert.Equal(t, routeEnd, RouteAfterAgent(st))

	st = testutil.NewStateBuilder("t").Human("hi").AI("", testutil.Call("c", "get_me", nil)).Build()
	assert.Equal(t, routeTools, RouteAfterAgent(st))

	assert.Equal(t, routeEnd, RouteAfterAgent(core.NewConversationState("t")))
}
