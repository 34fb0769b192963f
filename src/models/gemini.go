package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ---------------------------- Google Gemini ----------------------------------

const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiModel adapts the Gemini SDK to the Model interface. It is the only
// place in the module that touches provider-native types.
type GeminiModel struct {
	Client *genai.Client
	Model  string
}

// NewGeminiModel builds a Gemini-backed model from an API key. The key is a
// per-session credential and is never persisted.
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing Gemini API key")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiModel{Client: client, Model: model}, nil
}

func (g *GeminiModel) StartChat(system string, history []Turn, tools []ToolDecl) Chat {
	m := g.Client.GenerativeModel(g.Model)
	if strings.TrimSpace(system) != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(tools) > 0 {
		m.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(tools)}}
	}

	cs := m.StartChat()
	for _, turn := range history {
		role := "user"
		if turn.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Text)},
		})
	}
	return &geminiChat{session: cs}
}

// Close releases the underlying SDK client.
func (g *GeminiModel) Close() error {
	if g == nil || g.Client == nil {
		return nil
	}
	return g.Client.Close()
}

type geminiChat struct {
	session *genai.ChatSession
}

func (c *geminiChat) Send(ctx context.Context, text string) (Reply, error) {
	resp, err := c.session.SendMessage(ctx, genai.Text(text))
	if err != nil {
		return Reply{}, err
	}
	return parseResponse(resp)
}

func (c *geminiChat) SendToolResults(ctx context.Context, results []ToolResult) (Reply, error) {
	parts := make([]genai.Part, 0, len(results))
	for _, res := range results {
		parts = append(parts, genai.FunctionResponse{
			Name:     res.Name,
			Response: res.Payload,
		})
	}
	resp, err := c.session.SendMessage(ctx, parts...)
	if err != nil {
		return Reply{}, err
	}
	return parseResponse(resp)
}

// parseResponse flattens a provider response into text fragments and
// tool-invocation requests, preserving part order.
func parseResponse(resp *genai.GenerateContentResponse) (Reply, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Reply{}, errors.New("gemini: empty response")
	}

	var reply Reply
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if s := string(p); s != "" {
				reply.Texts = append(reply.Texts, s)
			}
		case genai.FunctionCall:
			args := p.Args
			if args == nil {
				args = map[string]any{}
			}
			reply.Calls = append(reply.Calls, ToolCall{Name: p.Name, Args: args})
		}
	}
	return reply, nil
}

func toFunctionDeclarations(tools []ToolDecl) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toGeminiSchema(tool.Schema),
		})
	}
	return decls
}

var geminiTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"integer": genai.TypeInteger,
	"number":  genai.TypeNumber,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

func toGeminiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	typ, ok := geminiTypes[strings.ToLower(s.Type)]
	if !ok {
		typ = genai.TypeString
	}
	out := &genai.Schema{
		Type:        typ,
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toGeminiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGeminiSchema(prop)
		}
	}
	return out
}

var _ Model = (*GeminiModel)(nil)
