package catalogs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newOpenLibraryTestClient(t *testing.T, handler http.Handler) *OpenLibraryClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewOpenLibraryClient()
	c.BaseURL = srv.URL
	return c
}

func TestOpenLibrarySearch(t *testing.T) {
	var gotQuery, gotFields string
	c := newOpenLibraryTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search.json", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotFields = r.URL.Query().Get("fields")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"numFound": 42,
			"docs": [{
				"key": "/works/OL893415W",
				"title": "Dune",
				"author_name": ["Frank Herbert"],
				"first_publish_year": 1965,
				"number_of_pages_median": 688,
				"subject": ["Science fiction", "Deserts", "Politics", "Ecology", "Spice", "Sixth subject"],
				"isbn": ["9780441013593", "0441013597"],
				"cover_i": 12345,
				"publisher": ["Chilton", "Ace"]
			}, {
				"key": "/works/OL000001W"
			}]
		}`))
	}))

	out, err := c.Search(context.Background(), "dune", 8)
	require.NoError(t, err)
	require.Equal(t, "dune", gotQuery)
	require.Contains(t, gotFields, "number_of_pages_median")
	require.EqualValues(t, 42, out.Total)
	require.Len(t, out.Books, 2)

	dune := out.Books[0]
	require.Equal(t, "Dune", dune.Title)
	require.Equal(t, []string{"Frank Herbert"}, dune.Authors)
	require.Equal(t, 1965, dune.Year)
	require.Equal(t, 688, dune.Pages)
	require.Len(t, dune.Subjects, 5, "subjects should be trimmed to five")
	require.Equal(t, "9780441013593", dune.ISBN)
	require.Equal(t, "Chilton", dune.Publisher)
	require.Equal(t, "/works/OL893415W", dune.OpenLibraryKey)
	require.Equal(t, "Open Library", dune.Source)

	sparse := out.Books[1]
	require.Equal(t, "Unknown", sparse.Title)
	require.Equal(t, []string{"Unknown"}, sparse.Authors)
}

func TestOpenLibraryDetailsStringAndWrappedDescription(t *testing.T) {
	c := newOpenLibraryTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/works/OL1W.json":
			w.Write([]byte(`{"title": "Plain", "description": "a bare string", "subjects": ["one"]}`))
		case "/works/OL2W.json":
			w.Write([]byte(`{"title": "Wrapped", "description": {"type": "/type/text", "value": "a wrapped value"}}`))
		case "/works/OL3W.json":
			w.Write([]byte(`{"title": "Empty"}`))
		default:
			http.NotFound(w, r)
		}
	}))

	plain, err := c.Details(context.Background(), "/works/OL1W")
	require.NoError(t, err)
	require.Equal(t, "a bare string", plain.Description)
	require.Equal(t, []string{"one"}, plain.Subjects)

	wrapped, err := c.Details(context.Background(), "/works/OL2W")
	require.NoError(t, err)
	require.Equal(t, "a wrapped value", wrapped.Description)

	empty, err := c.Details(context.Background(), "/works/OL3W")
	require.NoError(t, err)
	require.Equal(t, "No description available.", empty.Description)
}

func TestOpenLibraryErrorStatus(t *testing.T) {
	c := newOpenLibraryTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))

	_, err := c.Search(context.Background(), "dune", 8)
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}
