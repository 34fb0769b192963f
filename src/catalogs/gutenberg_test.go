package catalogs

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestPlainTextURLFallbackChain(t *testing.T) {
	require.Equal(t, "utf8", plainTextURL(map[string]string{
		"text/plain; charset=utf-8":    "utf8",
		"text/plain; charset=us-ascii": "ascii",
		"text/plain":                   "plain",
	}))
	require.Equal(t, "ascii", plainTextURL(map[string]string{
		"text/plain; charset=us-ascii": "ascii",
		"text/plain":                   "plain",
	}))
	require.Equal(t, "plain", plainTextURL(map[string]string{
		"text/plain": "plain",
	}))
	require.Equal(t, "", plainTextURL(map[string]string{
		"application/epub+zip": "epub",
	}))
}

func TestGutenbergSearchAppliesClientSideLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/books/", r.URL.Path)
		require.Equal(t, "text/plain", r.URL.Query().Get("mime_type"))
		require.Equal(t, "frankenstein", r.URL.Query().Get("search"))

		var results []string
		for i := 1; i <= 5; i++ {
			results = append(results, fmt.Sprintf(`{
				"id": %d,
				"title": "Book %d",
				"authors": [{"name": "Mary Shelley"}],
				"subjects": ["Horror"],
				"download_count": %d,
				"formats": {"text/plain; charset=utf-8": "http://mirror/%d.txt", "image/jpeg": "http://mirror/%d.jpg"}
			}`, i, i, i*100, i, i))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"count": 5, "results": [%s]}`, strings.Join(results, ","))
	}))
	defer srv.Close()

	c := NewGutenbergClient()
	c.BaseURL = srv.URL

	out, err := c.Search(context.Background(), "frankenstein", 2)
	require.NoError(t, err)
	require.EqualValues(t, 5, out.Total)
	require.Len(t, out.Books, 2)
	require.EqualValues(t, 1, out.Books[0].GutenbergID)
	require.Equal(t, []string{"Mary Shelley"}, out.Books[0].Authors)
	require.Equal(t, "http://mirror/1.txt", out.Books[0].TextURL)
	require.Equal(t, "http://mirror/1.jpg", out.Books[0].CoverURL)
}

func TestFetchChunkRangesAndTruncates(t *testing.T) {
	text := strings.Repeat("word ", 100) // 500 chars
	var gotRange string

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/books/84/":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{
				"id": 84,
				"title": "Frankenstein",
				"authors": [{"name": "Mary Shelley"}],
				"formats": {"text/plain; charset=utf-8": "%s/files/84.txt"}
			}`, srv.URL)
		case "/files/84.txt":
			gotRange = r.Header.Get("Range")
			w.Write([]byte(text))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewGutenbergClient()
	c.BaseURL = srv.URL

	chunk, err := c.FetchChunk(context.Background(), 84, 10, 123)
	require.NoError(t, err)
	require.Equal(t, "bytes=10-502", gotRange, "byte range is four times the chunk size")
	require.Equal(t, "Frankenstein", chunk.Title)
	require.Equal(t, []string{"Mary Shelley"}, chunk.Authors)
	require.Equal(t, 10, chunk.Offset)
	require.Equal(t, 10+123*4, chunk.NextOffset)

	require.LessOrEqual(t, utf8.RuneCountInString(chunk.Content), 123)
	require.False(t, strings.HasSuffix(chunk.Content, "wor"),
		"content must not end mid-word: %q", chunk.Content)
	require.True(t, strings.HasSuffix(chunk.Content, "word"),
		"content should end at a word boundary: %q", chunk.Content)
}

func TestFetchChunkShortContentUntouched(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/books/11/":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id": 11, "title": "Alice", "formats": {"text/plain": "%s/files/11.txt"}}`, srv.URL)
		case "/files/11.txt":
			w.Write([]byte("short text"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewGutenbergClient()
	c.BaseURL = srv.URL

	chunk, err := c.FetchChunk(context.Background(), 11, 0, 0)
	require.NoError(t, err)
	require.Equal(t, "short text", chunk.Content)
	require.Equal(t, DefaultChunkSize*4, chunk.NextOffset)
}

func TestFetchChunkNoPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 7, "title": "Images Only", "formats": {"application/epub+zip": "http://mirror/7.epub"}}`))
	}))
	defer srv.Close()

	c := NewGutenbergClient()
	c.BaseURL = srv.URL

	_, err := c.FetchChunk(context.Background(), 7, 0, 100)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no plain text")
}

func TestFetchChunkReplacesInvalidUTF8(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/books/5/":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id": 5, "title": "Latin1", "formats": {"text/plain": "%s/files/5.txt"}}`, srv.URL)
		case "/files/5.txt":
			w.Write([]byte{'c', 'a', 'f', 0xE9, ' ', 'a', 'u', ' ', 'l', 'a', 'i', 't'})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewGutenbergClient()
	c.BaseURL = srv.URL

	chunk, err := c.FetchChunk(context.Background(), 5, 0, 100)
	require.NoError(t, err)
	require.True(t, utf8.ValidString(chunk.Content))
	require.Contains(t, chunk.Content, "caf�")
}

func TestTruncateChunkWithoutSpacesKeepsPrefix(t *testing.T) {
	out := truncateChunk(strings.Repeat("x", 50), 10)
	require.Equal(t, strings.Repeat("x", 10), out)
}
