package libris

import (
	"context"
	"strings"
	"testing"

	"github.com/libris-ai/libris/src/models"
)

func TestCatalogRegisterAndLookupCaseInsensitive(t *testing.T) {
	catalog := NewToolCatalog()
	err := catalog.Register(Tool{
		Name:        "Add_To_Personal_Library",
		Description: "adds a book",
		Handler: func(ctx context.Context, args map[string]any) map[string]any {
			return map[string]any{"success": true}
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, ok := catalog.Lookup("add_to_personal_library"); !ok {
		t.Fatalf("lookup should be case-insensitive")
	}
	if _, ok := catalog.Lookup("  ADD_TO_PERSONAL_LIBRARY  "); !ok {
		t.Fatalf("lookup should trim whitespace")
	}
}

func TestCatalogRejectsDuplicatesAndNilHandlers(t *testing.T) {
	catalog := NewToolCatalog()
	ok := func(ctx context.Context, args map[string]any) map[string]any {
		return map[string]any{"success": true}
	}
	if err := catalog.Register(Tool{Name: "list_books", Handler: ok}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := catalog.Register(Tool{Name: "LIST_BOOKS", Handler: ok}); err == nil {
		t.Fatalf("duplicate name should be rejected")
	}
	if err := catalog.Register(Tool{Name: "no_handler"}); err == nil {
		t.Fatalf("nil handler should be rejected")
	}
	if err := catalog.Register(Tool{Name: "  ", Handler: ok}); err == nil {
		t.Fatalf("blank name should be rejected")
	}
}

func TestCatalogDeclsKeepRegistrationOrder(t *testing.T) {
	catalog := NewToolCatalog()
	noop := func(ctx context.Context, args map[string]any) map[string]any {
		return map[string]any{"success": true}
	}
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := catalog.Register(Tool{Name: name, Handler: noop}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	decls := catalog.Decls()
	if len(decls) != 3 {
		t.Fatalf("expected 3 declarations, got %d", len(decls))
	}
	for i, want := range []string{"zeta", "alpha", "mid"} {
		if decls[i].Name != want {
			t.Fatalf("decl %d should be %s, got %s", i, want, decls[i].Name)
		}
	}
}

func TestDispatchValidatesArguments(t *testing.T) {
	catalog := NewToolCatalog()
	err := catalog.Register(Tool{
		Name: "search_open_library",
		Schema: &models.Schema{
			Type: "object",
			Properties: map[string]*models.Schema{
				"query": {Type: "string"},
				"limit": {Type: "integer"},
			},
			Required: []string{"query"},
		},
		Handler: func(ctx context.Context, args map[string]any) map[string]any {
			return map[string]any{"success": true, "query": args["query"]}
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	payload := catalog.Dispatch(context.Background(), models.ToolCall{
		Name: "search_open_library",
		Args: map[string]any{"limit": 5},
	})
	if ok, _ := payload["success"].(bool); ok {
		t.Fatalf("missing required arg should fail validation, got %+v", payload)
	}
	msg, _ := payload["error"].(string)
	if !strings.Contains(msg, "invalid arguments") {
		t.Fatalf("expected validation failure message, got %q", msg)
	}

	payload = catalog.Dispatch(context.Background(), models.ToolCall{
		Name: "search_open_library",
		Args: map[string]any{"query": "dune", "limit": 5},
	})
	if ok, _ := payload["success"].(bool); !ok {
		t.Fatalf("valid args should dispatch, got %+v", payload)
	}
}

func TestDispatchNeverPropagatesFailure(t *testing.T) {
	catalog := NewToolCatalog()
	err := catalog.Register(Tool{
		Name: "nil_result",
		Handler: func(ctx context.Context, args map[string]any) map[string]any {
			return nil
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	payload := catalog.Dispatch(context.Background(), models.ToolCall{Name: "nil_result"})
	if ok, _ := payload["success"].(bool); ok {
		t.Fatalf("nil handler result should become a failure payload")
	}

	payload = catalog.Dispatch(context.Background(), models.ToolCall{Name: "missing"})
	msg, _ := payload["error"].(string)
	if !strings.Contains(msg, "unknown tool") {
		t.Fatalf("unknown tool should return a failure payload, got %+v", payload)
	}
}
