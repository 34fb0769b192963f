package libris

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/libris-ai/libris/src/models"
)

// Handler executes one tool invocation. Handlers are total: every failure
// mode is captured in the returned payload's "success"/"error" fields so the
// agent loop can treat tool execution as data.
type Handler func(ctx context.Context, args map[string]any) map[string]any

// Tool is one named operation the model may invoke.
type Tool struct {
	Name        string
	Description string
	Schema      *models.Schema
	Handler     Handler
}

// ToolCatalog is the fixed registry of closures keyed by tool name.
type ToolCatalog struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
	order []string
}

type registeredTool struct {
	tool     Tool
	compiled *jsonschema.Schema
}

// NewToolCatalog constructs an empty catalog.
func NewToolCatalog() *ToolCatalog {
	return &ToolCatalog{tools: make(map[string]registeredTool)}
}

// Register adds a tool under a lower-cased key. The parameter schema is
// compiled once here; duplicate names and nil handlers are errors.
func (c *ToolCatalog) Register(tool Tool) error {
	key := strings.ToLower(strings.TrimSpace(tool.Name))
	if key == "" {
		return fmt.Errorf("tool name is empty")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %s has no handler", tool.Name)
	}

	var compiled *jsonschema.Schema
	if tool.Schema != nil {
		var err error
		compiled, err = compileSchema(tool.Schema)
		if err != nil {
			return fmt.Errorf("tool %s schema: %w", tool.Name, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tools[key]; exists {
		return fmt.Errorf("tool %s already registered", tool.Name)
	}
	c.tools[key] = registeredTool{tool: tool, compiled: compiled}
	c.order = append(c.order, key)
	return nil
}

// Lookup returns the tool if present.
func (c *ToolCatalog) Lookup(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.tools[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Tool{}, false
	}
	return entry.tool, true
}

// Decls returns provider-facing declarations in registration order.
func (c *ToolCatalog) Decls() []models.ToolDecl {
	c.mu.RLock()
	defer c.mu.RUnlock()

	decls := make([]models.ToolDecl, 0, len(c.order))
	for _, key := range c.order {
		t := c.tools[key].tool
		decls = append(decls, models.ToolDecl{
			Name:        t.Name,
			Description: t.Description,
			Schema:      t.Schema,
		})
	}
	return decls
}

// Dispatch routes one model-requested invocation to its handler. It never
// returns an error: unknown names, schema violations, and handler panics all
// become failure payloads so the loop keeps running.
func (c *ToolCatalog) Dispatch(ctx context.Context, call models.ToolCall) (payload map[string]any) {
	defer func() {
		if p := recover(); p != nil {
			payload = Failure(fmt.Errorf("tool %s panicked: %v", call.Name, p))
		}
	}()

	c.mu.RLock()
	entry, ok := c.tools[strings.ToLower(strings.TrimSpace(call.Name))]
	c.mu.RUnlock()
	if !ok {
		return Failure(fmt.Errorf("unknown tool: %s", call.Name))
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	if entry.compiled != nil {
		if err := validateArgs(entry.compiled, args); err != nil {
			return Failure(fmt.Errorf("invalid arguments for %s: %w", call.Name, err))
		}
	}

	result := entry.tool.Handler(ctx, args)
	if result == nil {
		return Failure(fmt.Errorf("tool %s returned no result", call.Name))
	}
	return result
}

// Failure wraps an error into the standard tool failure payload.
func Failure(err error) map[string]any {
	return map[string]any{"success": false, "error": err.Error()}
}

func compileSchema(schema *models.Schema) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool.json", doc); err != nil {
		return nil, err
	}
	return compiler.Compile("tool.json")
}

// validateArgs round-trips the arguments through JSON so the validator only
// ever sees plain decoded values, whatever the provider SDK handed us.
func validateArgs(schema *jsonschema.Schema, args map[string]any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return schema.Validate(value)
}
