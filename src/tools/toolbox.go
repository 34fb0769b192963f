// Package tools wires the book catalogs and the personal library into the
// agent's tool catalog. Every handler is total: failures come back as
// {"success": false, "error": ...} payloads rather than Go errors, so a bad
// tool outcome is something the model can read and react to.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	libris "github.com/libris-ai/libris"
	"github.com/libris-ai/libris/src/catalogs"
	"github.com/libris-ai/libris/src/library"
	"github.com/libris-ai/libris/src/models"
)

// Toolbox bundles the dependencies behind the assistant's tools.
type Toolbox struct {
	Library     library.Store
	OpenLibrary *catalogs.OpenLibraryClient
	Gutenberg   *catalogs.GutenbergClient

	logger *slog.Logger
}

// New builds a toolbox over the given store and catalog clients.
func New(store library.Store, ol *catalogs.OpenLibraryClient, gb *catalogs.GutenbergClient) *Toolbox {
	return &Toolbox{
		Library:     store,
		OpenLibrary: ol,
		Gutenberg:   gb,
		logger:      slog.Default().With("component", "tools"),
	}
}

// Register adds every tool to the catalog.
func (tb *Toolbox) Register(catalog *libris.ToolCatalog) error {
	for _, tool := range tb.tools() {
		if err := catalog.Register(tool); err != nil {
			return err
		}
		tb.logger.Debug("registered tool", "name", tool.Name)
	}
	return nil
}

func (tb *Toolbox) tools() []libris.Tool {
	return []libris.Tool{
		{
			Name:        "search_open_library",
			Description: "Search millions of books from Open Library (internet). Use for any book by title, author, subject, or keyword.",
			Schema: &models.Schema{
				Type: "object",
				Properties: map[string]*models.Schema{
					"query": {Type: "string"},
					"limit": {Type: "integer"},
				},
				Required: []string{"query"},
			},
			Handler: tb.searchOpenLibrary,
		},
		{
			Name:        "get_book_details",
			Description: "Get detailed description and subjects for a book via its Open Library key.",
			Schema: &models.Schema{
				Type: "object",
				Properties: map[string]*models.Schema{
					"open_library_key": {Type: "string"},
				},
				Required: []string{"open_library_key"},
			},
			Handler: tb.getBookDetails,
		},
		{
			Name:        "search_gutenberg",
			Description: "Search Project Gutenberg for FREE books that can be fully read. Best for classics.",
			Schema: &models.Schema{
				Type: "object",
				Properties: map[string]*models.Schema{
					"query": {Type: "string"},
					"limit": {Type: "integer"},
				},
				Required: []string{"query"},
			},
			Handler: tb.searchGutenberg,
		},
		{
			Name:        "fetch_gutenberg_content",
			Description: "Fetch readable text from a Gutenberg book. Returns a chunk of the actual book content.",
			Schema: &models.Schema{
				Type: "object",
				Properties: map[string]*models.Schema{
					"gutenberg_id": {Type: "integer"},
					"offset":       {Type: "integer"},
				},
				Required: []string{"gutenberg_id"},
			},
			Handler: tb.fetchGutenbergContent,
		},
		{
			Name:        "add_to_personal_library",
			Description: "Add a book to the user's personal library. Include gutenberg_id when available.",
			Schema: &models.Schema{
				Type: "object",
				Properties: map[string]*models.Schema{
					"title":            {Type: "string"},
					"author":           {Type: "string"},
					"genre":            {Type: "string"},
					"notes":            {Type: "string"},
					"year":             {Type: "integer"},
					"isbn":             {Type: "string"},
					"gutenberg_id":     {Type: "integer"},
					"open_library_key": {Type: "string"},
					"total_pages":      {Type: "integer"},
				},
				Required: []string{"title", "author"},
			},
			Handler: tb.addToPersonalLibrary,
		},
		{
			Name:        "list_personal_library",
			Description: "List books in the user's personal library with optional filters.",
			Schema: &models.Schema{
				Type: "object",
				Properties: map[string]*models.Schema{
					"genre_filter": {Type: "string"},
					"search_query": {Type: "string"},
					"status_filter": {
						Type: "string",
						Enum: []string{library.StatusUnread, library.StatusReading, library.StatusFinished, ""},
					},
				},
			},
			Handler: tb.listPersonalLibrary,
		},
		{
			Name:        "remove_from_library",
			Description: "Remove a book from the personal library by ID.",
			Schema: &models.Schema{
				Type: "object",
				Properties: map[string]*models.Schema{
					"book_id": {Type: "integer"},
				},
				Required: []string{"book_id"},
			},
			Handler: tb.removeFromLibrary,
		},
		{
			Name:        "update_reading_progress",
			Description: "Update reading status (unread/reading/finished), current page, total pages, star rating (1-5), or review for a book.",
			Schema: &models.Schema{
				Type: "object",
				Properties: map[string]*models.Schema{
					"book_id":      {Type: "integer"},
					"current_page": {Type: "integer"},
					"total_pages":  {Type: "integer"},
					"status": {
						Type: "string",
						Enum: []string{library.StatusUnread, library.StatusReading, library.StatusFinished},
					},
					"rating": {Type: "integer", Description: "1-5 stars"},
					"review": {Type: "string"},
				},
				Required: []string{"book_id"},
			},
			Handler: tb.updateReadingProgress,
		},
		{
			Name:        "get_recommendations",
			Description: "Get personalized recommendation context based on library and preferences.",
			Schema: &models.Schema{
				Type: "object",
				Properties: map[string]*models.Schema{
					"genre":    {Type: "string"},
					"mood":     {Type: "string"},
					"based_on": {Type: "string"},
				},
			},
			Handler: tb.getRecommendations,
		},
	}
}

func (tb *Toolbox) searchOpenLibrary(ctx context.Context, args map[string]any) map[string]any {
	out, err := tb.OpenLibrary.Search(ctx, argString(args, "query"), argInt(args, "limit", 8))
	if err != nil {
		return searchFailure(err)
	}
	return map[string]any{
		"success": true,
		"total":   out.Total,
		"books":   jsonValue(out.Books),
	}
}

func (tb *Toolbox) getBookDetails(ctx context.Context, args map[string]any) map[string]any {
	out, err := tb.OpenLibrary.Details(ctx, argString(args, "open_library_key"))
	if err != nil {
		return libris.Failure(err)
	}
	return map[string]any{
		"success":     true,
		"title":       out.Title,
		"description": out.Description,
		"subjects":    jsonValue(out.Subjects),
	}
}

func (tb *Toolbox) searchGutenberg(ctx context.Context, args map[string]any) map[string]any {
	out, err := tb.Gutenberg.Search(ctx, argString(args, "query"), argInt(args, "limit", 8))
	if err != nil {
		return searchFailure(err)
	}
	return map[string]any{
		"success": true,
		"total":   out.Total,
		"books":   jsonValue(out.Books),
	}
}

func (tb *Toolbox) fetchGutenbergContent(ctx context.Context, args map[string]any) map[string]any {
	chunk, err := tb.Gutenberg.FetchChunk(ctx,
		int64(argInt(args, "gutenberg_id", 0)),
		argInt(args, "offset", 0),
		catalogs.DefaultChunkSize)
	if err != nil {
		return libris.Failure(err)
	}
	return map[string]any{
		"success":      true,
		"gutenberg_id": chunk.GutenbergID,
		"title":        chunk.Title,
		"authors":      jsonValue(chunk.Authors),
		"content":      chunk.Content,
		"offset":       chunk.Offset,
		"next_offset":  chunk.NextOffset,
	}
}

func (tb *Toolbox) addToPersonalLibrary(ctx context.Context, args map[string]any) map[string]any {
	book := library.NewBook(argString(args, "title"), argString(args, "author"))
	book.Genre = argString(args, "genre")
	book.Notes = argString(args, "notes")
	book.Year = argInt(args, "year", 0)
	book.ISBN = argString(args, "isbn")
	book.GutenbergID = int64(argInt(args, "gutenberg_id", 0))
	book.OpenLibraryKey = argString(args, "open_library_key")
	book.TotalPages = argInt(args, "total_pages", 0)

	id, err := tb.Library.Add(ctx, book)
	if err != nil {
		return libris.Failure(err)
	}

	msg := fmt.Sprintf("'%s' by %s added (ID #%d).", book.Title, book.Author, id)
	if book.GutenbergID != 0 {
		msg += " 📖 Free eBook available via Gutenberg!"
	}
	return map[string]any{
		"success": true,
		"message": msg,
		"book_id": id,
	}
}

func (tb *Toolbox) listPersonalLibrary(ctx context.Context, args map[string]any) map[string]any {
	books, err := tb.Library.List(ctx)
	if err != nil {
		return libris.Failure(err)
	}
	filtered := library.FilterBooks(books, library.Filter{
		Genre:  argString(args, "genre_filter"),
		Query:  argString(args, "search_query"),
		Status: argString(args, "status_filter"),
	})
	return map[string]any{
		"success": true,
		"count":   len(filtered),
		"books":   jsonValue(filtered),
	}
}

func (tb *Toolbox) removeFromLibrary(ctx context.Context, args map[string]any) map[string]any {
	id := int64(argInt(args, "book_id", 0))
	ok, err := tb.Library.Remove(ctx, id)
	if err != nil {
		return libris.Failure(err)
	}
	verb := "removed"
	if !ok {
		verb = "not found"
	}
	return map[string]any{
		"success": ok,
		"message": fmt.Sprintf("Book #%d %s.", id, verb),
	}
}

func (tb *Toolbox) updateReadingProgress(ctx context.Context, args map[string]any) map[string]any {
	id := int64(argInt(args, "book_id", 0))
	patch := library.Patch{
		CurrentPage: argIntPtr(args, "current_page"),
		TotalPages:  argIntPtr(args, "total_pages"),
		Status:      argStringPtr(args, "status"),
		Rating:      argIntPtr(args, "rating"),
		Review:      argStringPtr(args, "review"),
	}
	if patch.Empty() {
		return map[string]any{
			"success": false,
			"message": fmt.Sprintf("No fields to update for book #%d.", id),
		}
	}

	updated, err := tb.Library.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			return map[string]any{
				"success": false,
				"message": fmt.Sprintf("Book #%d not found.", id),
			}
		}
		return libris.Failure(err)
	}

	var parts []string
	if patch.CurrentPage != nil {
		parts = append(parts, fmt.Sprintf("page→%d", *patch.CurrentPage))
	}
	if patch.Status != nil && *patch.Status != "" {
		parts = append(parts, fmt.Sprintf("status→%s", *patch.Status))
	}
	if patch.Rating != nil {
		parts = append(parts, fmt.Sprintf("rating→%s", strings.Repeat("★", updated.Rating)))
	}
	if patch.Review != nil && *patch.Review != "" {
		parts = append(parts, "review saved")
	}
	summary := strings.Join(parts, ", ")
	if summary == "" {
		summary = "saved"
	}
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Book #%d updated: %s.", id, summary),
	}
}

func (tb *Toolbox) getRecommendations(ctx context.Context, args map[string]any) map[string]any {
	books, err := tb.Library.List(ctx)
	if err != nil {
		return libris.Failure(err)
	}

	titles := make([]string, 0, 10)
	genres := make([]string, 0)
	seenGenres := map[string]bool{}
	finished := make([]string, 0, 5)
	reading := make([]string, 0, 3)
	for _, b := range books {
		if len(titles) < 10 {
			titles = append(titles, b.Title)
		}
		if b.Genre != "" && !seenGenres[b.Genre] {
			seenGenres[b.Genre] = true
			genres = append(genres, b.Genre)
		}
		if b.Status == library.StatusFinished && len(finished) < 5 {
			finished = append(finished, b.Title)
		}
		if b.Status == library.StatusReading && len(reading) < 3 {
			reading = append(reading, b.Title)
		}
	}

	return map[string]any{
		"success":                true,
		"personal_library_count": len(books),
		"personal_titles":        jsonValue(titles),
		"personal_genres":        jsonValue(genres),
		"recently_finished":      jsonValue(finished),
		"currently_reading":      jsonValue(reading),
		"request": map[string]any{
			"genre":    argString(args, "genre"),
			"mood":     argString(args, "mood"),
			"based_on": argString(args, "based_on"),
		},
	}
}

// searchFailure keeps the books key present so the model always sees a list.
func searchFailure(err error) map[string]any {
	payload := libris.Failure(err)
	payload["books"] = []any{}
	return payload
}

// jsonValue round-trips a typed value into plain JSON types, which is what
// the provider SDKs expect inside a tool result payload.
func jsonValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	if out == nil {
		return []any{}
	}
	return out
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argStringPtr(args map[string]any, key string) *string {
	if v, ok := args[key].(string); ok {
		return &v
	}
	return nil
}

// argInt reads a numeric argument. Providers decode JSON numbers as float64,
// so both shapes are accepted.
func argInt(args map[string]any, key string, fallback int) int {
	if p := argIntPtr(args, key); p != nil {
		return *p
	}
	return fallback
}

func argIntPtr(args map[string]any, key string) *int {
	switch v := args[key].(type) {
	case int:
		return &v
	case int64:
		n := int(v)
		return &n
	case float64:
		n := int(v)
		return &n
	case json.Number:
		if f, err := v.Float64(); err == nil {
			n := int(f)
			return &n
		}
	}
	return nil
}
