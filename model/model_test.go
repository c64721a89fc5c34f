package model

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanModel struct {
	responses []Response
	err       error
}

func (m chanModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	out := make(chan Response, len(m.responses))
	errCh := make(chan error, 1)
	for _, r := range m.responses {
		out <- r
	}
	if m.err != nil {
		errCh <- m.err
	}
	close(out)
	close(errCh)
	return out, errCh
}

func (chanModel) Info() Info { return Info{Name: "chan"} }

func TestComplete_CollectsPartialsAndFinal(t *testing.T) {
	m := chanModel{responses: []Response{
		{Partial: true, Text: "Hel"},
		{Partial: true, Text: "lo"},
		{Text: "Hello", FinishReason: "stop", Usage: &core.TokenUsage{TotalTokens: 3}},
	}}

	var partials []string
	final, err := Complete(context.Background(), m, Request{}, func(r Response) { partials = append(partials, r.Text) })
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, partials)
	assert.Equal(t, "Hello", final.Text)
	assert.Equal(t, 3, final.Usage.TotalTokens)
}

func TestComplete_Errors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Complete(context.Background(), chanModel{err: boom}, Request{}, nil)
	assert.ErrorIs(t, err, boom)

	_, err = Complete(context.Background(), chanModel{responses: []Response{{Partial: true, Text: "x"}}}, Request{}, nil)
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestMockModel(t *testing.T) {
	m := NewMockModel("mock")
	m.AddResponse("hi", "hello there")

	req := Request{Messages: []core.Message{core.HumanMessage{Text: "hi"}}, Stream: true}
	var chunks []string
	final, err := Complete(context.Background(), m, req, func(r Response) { chunks = append(chunks, r.Text) })
	require.NoError(t, err)
	assert.Equal(t, "hello there", final.Text)
	assert.Equal(t, []string{"hello ", "there"}, chunks)
	assert.NotNil(t, final.Usage)

	final, err = Complete(context.Background(), m, Request{Messages: []core.Message{core.HumanMessage{Text: "repo?"}}, JSON: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", final.Text)

	_, err = Complete(context.Background(), m, Request{}, nil)
	assert.Error(t, err)
}

func TestToolDefinitions(t *testing.T) {
	defs := ToolDefinitions([]core.ToolDescriptor{
		{Name: "get_me", Description: "who am i"},
		{Name: "list_issues", InputSchema: []byte(`{"type":"object","properties":{"repo":{"type":"string"}}}`)},
	})
	require.Len(t, defs, 2)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "get_me", defs[0].Function.Name)
	assert.Contains(t, defs[1].Function.Parameters["properties"], "repo")
}

func TestDecodeArguments(t *testing.T) {
	assert.Equal(t, map[string]any{"a": "b"}, DecodeArguments(`{"a":"b"}`))
	assert.Equal(t, map[string]any{}, DecodeArguments(""))
	assert.Equal(t, map[string]any{}, DecodeArguments("{not json"))
	assert.Equal(t, map[string]any{}, DecodeArguments("null"))
}
