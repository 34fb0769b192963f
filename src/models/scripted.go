package models

import (
	"context"
	"errors"
)

// ScriptedModel replays a fixed sequence of replies (or errors) and records
// everything it was sent. It is the local stand-in for live API calls, in
// the same spirit as a dummy LLM: deterministic and offline.
type ScriptedModel struct {
	Steps []ScriptedStep

	// Captured by StartChat / the chat it returns.
	System       string
	History      []Turn
	Tools        []ToolDecl
	SentMessages []string
	SentResults  [][]ToolResult
	CallCount    int
}

// ScriptedStep is one model round: either a reply or an error.
type ScriptedStep struct {
	Reply Reply
	Err   error
}

// TextStep builds a text-only step from the given fragments.
func TextStep(texts ...string) ScriptedStep {
	return ScriptedStep{Reply: Reply{Texts: texts}}
}

// CallStep builds a step requesting the given tool invocations.
func CallStep(calls ...ToolCall) ScriptedStep {
	return ScriptedStep{Reply: Reply{Calls: calls}}
}

// ErrStep builds a failing step.
func ErrStep(err error) ScriptedStep {
	return ScriptedStep{Err: err}
}

func (m *ScriptedModel) StartChat(system string, history []Turn, tools []ToolDecl) Chat {
	m.System = system
	m.History = append([]Turn(nil), history...)
	m.Tools = append([]ToolDecl(nil), tools...)
	return &scriptedChat{model: m}
}

type scriptedChat struct {
	model *ScriptedModel
}

func (c *scriptedChat) Send(_ context.Context, text string) (Reply, error) {
	c.model.SentMessages = append(c.model.SentMessages, text)
	return c.next()
}

func (c *scriptedChat) SendToolResults(_ context.Context, results []ToolResult) (Reply, error) {
	c.model.SentResults = append(c.model.SentResults, append([]ToolResult(nil), results...))
	return c.next()
}

func (c *scriptedChat) next() (Reply, error) {
	if c.model.CallCount >= len(c.model.Steps) {
		return Reply{}, errors.New("scripted model: no steps left")
	}
	step := c.model.Steps[c.model.CallCount]
	c.model.CallCount++
	if step.Err != nil {
		return Reply{}, step.Err
	}
	return step.Reply, nil
}

var _ Model = (*ScriptedModel)(nil)
