package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	libris "github.com/libris-ai/libris"
	"github.com/libris-ai/libris/src/catalogs"
	"github.com/libris-ai/libris/src/library"
	"github.com/libris-ai/libris/src/models"
)

func newToolbox(t *testing.T) (*Toolbox, *libris.ToolCatalog) {
	t.Helper()
	tb := New(library.NewMemoryStore(), catalogs.NewOpenLibraryClient(), catalogs.NewGutenbergClient())
	catalog := libris.NewToolCatalog()
	require.NoError(t, tb.Register(catalog))
	return tb, catalog
}

func TestRegisterExposesAllTools(t *testing.T) {
	_, catalog := newToolbox(t)

	decls := catalog.Decls()
	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.Name
	}
	require.Equal(t, []string{
		"search_open_library",
		"get_book_details",
		"search_gutenberg",
		"fetch_gutenberg_content",
		"add_to_personal_library",
		"list_personal_library",
		"remove_from_library",
		"update_reading_progress",
		"get_recommendations",
	}, names)
}

func TestAddListRoundTrip(t *testing.T) {
	tb, _ := newToolbox(t)
	ctx := context.Background()

	payload := tb.addToPersonalLibrary(ctx, map[string]any{
		"title":        "Dune",
		"author":       "Frank Herbert",
		"genre":        "SciFi",
		"gutenberg_id": float64(123),
	})
	require.Equal(t, true, payload["success"])
	require.Contains(t, payload["message"], "'Dune' by Frank Herbert added")
	require.Contains(t, payload["message"], "Gutenberg", "gutenberg books advertise the free text")

	listed := tb.listPersonalLibrary(ctx, map[string]any{})
	require.Equal(t, true, listed["success"])
	require.Equal(t, 1, listed["count"])

	books := listed["books"].([]any)
	book := books[0].(map[string]any)
	require.Equal(t, "Dune", book["title"])
	require.Equal(t, "Frank Herbert", book["author"])
	require.EqualValues(t, 123, book["gutenberg_id"])
	require.Equal(t, library.StatusUnread, book["status"])
}

func TestListFilters(t *testing.T) {
	tb, _ := newToolbox(t)
	ctx := context.Background()

	tb.addToPersonalLibrary(ctx, map[string]any{"title": "A", "author": "X", "genre": "SciFi"})
	tb.addToPersonalLibrary(ctx, map[string]any{"title": "B", "author": "Y", "genre": "Fantasy"})
	tb.updateReadingProgress(ctx, map[string]any{"book_id": float64(1), "status": "finished"})

	out := tb.listPersonalLibrary(ctx, map[string]any{"status_filter": "finished"})
	require.Equal(t, 1, out["count"])

	out = tb.listPersonalLibrary(ctx, map[string]any{"search_query": "y"})
	require.Equal(t, 1, out["count"])

	out = tb.listPersonalLibrary(ctx, map[string]any{"genre_filter": "sci"})
	require.Equal(t, 1, out["count"])
}

func TestUpdateReadingProgressMessages(t *testing.T) {
	tb, _ := newToolbox(t)
	ctx := context.Background()

	tb.addToPersonalLibrary(ctx, map[string]any{"title": "Dune", "author": "Frank Herbert"})

	payload := tb.updateReadingProgress(ctx, map[string]any{
		"book_id":      float64(1),
		"current_page": float64(50),
		"status":       "reading",
		"rating":       float64(9),
		"review":       "great so far",
	})
	require.Equal(t, true, payload["success"])
	msg := payload["message"].(string)
	require.Contains(t, msg, "page→50")
	require.Contains(t, msg, "status→reading")
	require.Contains(t, msg, "★★★★★", "rating is clamped to five stars")
	require.Contains(t, msg, "review saved")

	payload = tb.updateReadingProgress(ctx, map[string]any{"book_id": float64(99), "status": "reading"})
	require.Equal(t, false, payload["success"])
	require.Contains(t, payload["message"], "not found")

	payload = tb.updateReadingProgress(ctx, map[string]any{"book_id": float64(1)})
	require.Equal(t, false, payload["success"])
	require.Contains(t, payload["message"], "No fields to update")
}

func TestRemoveFromLibraryMessages(t *testing.T) {
	tb, _ := newToolbox(t)
	ctx := context.Background()

	tb.addToPersonalLibrary(ctx, map[string]any{"title": "Dune", "author": "Frank Herbert"})

	payload := tb.removeFromLibrary(ctx, map[string]any{"book_id": float64(1)})
	require.Equal(t, true, payload["success"])
	require.Contains(t, payload["message"], "removed")

	payload = tb.removeFromLibrary(ctx, map[string]any{"book_id": float64(1)})
	require.Equal(t, false, payload["success"])
	require.Contains(t, payload["message"], "not found")
}

func TestGetRecommendationsSnapshot(t *testing.T) {
	tb, _ := newToolbox(t)
	ctx := context.Background()

	tb.addToPersonalLibrary(ctx, map[string]any{"title": "Dune", "author": "Frank Herbert", "genre": "SciFi"})
	tb.addToPersonalLibrary(ctx, map[string]any{"title": "Emma", "author": "Jane Austen", "genre": "Classic"})
	tb.updateReadingProgress(ctx, map[string]any{"book_id": float64(1), "status": "finished"})
	tb.updateReadingProgress(ctx, map[string]any{"book_id": float64(2), "status": "reading"})

	payload := tb.getRecommendations(ctx, map[string]any{"mood": "cozy", "genre": "classic"})
	require.Equal(t, true, payload["success"])
	require.Equal(t, 2, payload["personal_library_count"])
	require.ElementsMatch(t, []any{"SciFi", "Classic"}, payload["personal_genres"])
	require.Equal(t, []any{"Dune"}, payload["recently_finished"])
	require.Equal(t, []any{"Emma"}, payload["currently_reading"])

	req := payload["request"].(map[string]any)
	require.Equal(t, "cozy", req["mood"])
	require.Equal(t, "classic", req["genre"])
}

func TestSearchFailureKeepsBooksKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	tb, _ := newToolbox(t)
	tb.OpenLibrary.BaseURL = srv.URL
	tb.Gutenberg.BaseURL = srv.URL

	for _, handler := range []libris.Handler{tb.searchOpenLibrary, tb.searchGutenberg} {
		payload := handler(context.Background(), map[string]any{"query": "dune"})
		require.Equal(t, false, payload["success"])
		require.NotEmpty(t, payload["error"])
		require.Equal(t, []any{}, payload["books"])
	}
}

func TestDispatchValidatesStatusEnum(t *testing.T) {
	_, catalog := newToolbox(t)

	payload := catalog.Dispatch(context.Background(), models.ToolCall{
		Name: "update_reading_progress",
		Args: map[string]any{"book_id": 1, "status": "abandoned"},
	})
	require.Equal(t, false, payload["success"])
	require.Contains(t, payload["error"], "invalid arguments")
}

func TestArgCoercion(t *testing.T) {
	require.Equal(t, 5, argInt(map[string]any{"n": float64(5)}, "n", 0))
	require.Equal(t, 7, argInt(map[string]any{"n": 7}, "n", 0))
	require.Equal(t, 3, argInt(map[string]any{}, "n", 3))
	require.Nil(t, argIntPtr(map[string]any{"n": "five"}, "n"))
	require.Nil(t, argStringPtr(map[string]any{}, "s"))
}
