package catalogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultGutendexURL = "https://gutendex.com"

	// DefaultChunkSize is the reader chunk length in characters.
	DefaultChunkSize = 3000
)

// GutenbergClient talks to Gutendex, the Project Gutenberg catalog API, and
// to the mirrors hosting the plain-text files themselves.
type GutenbergClient struct {
	BaseURL string
	HTTP    *http.Client

	logger *slog.Logger
}

// NewGutenbergClient builds a client against the public Gutendex API.
func NewGutenbergClient() *GutenbergClient {
	return &GutenbergClient{
		BaseURL: defaultGutendexURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
		logger:  slog.Default().With("component", "gutenberg"),
	}
}

// GutenbergBook is one catalog entry with its plain-text location resolved.
type GutenbergBook struct {
	GutenbergID   int64    `json:"gutenberg_id"`
	Title         string   `json:"title"`
	Authors       []string `json:"authors"`
	Subjects      []string `json:"subjects,omitempty"`
	DownloadCount int64    `json:"download_count"`
	TextURL       string   `json:"txt_url,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
}

// GutenbergSearch is the result of one catalog search.
type GutenbergSearch struct {
	Total int64
	Books []GutenbergBook
}

type gutendexBook struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Subjects      []string          `json:"subjects"`
	DownloadCount int64             `json:"download_count"`
	Formats       map[string]string `json:"formats"`
}

// plainTextURL resolves the best plain-text format a book offers, preferring
// UTF-8 over us-ascii over the untagged variant.
func plainTextURL(formats map[string]string) string {
	for _, key := range []string{
		"text/plain; charset=utf-8",
		"text/plain; charset=us-ascii",
		"text/plain",
	} {
		if u := formats[key]; u != "" {
			return u
		}
	}
	return ""
}

func (b gutendexBook) toBook() GutenbergBook {
	authors := make([]string, 0, len(b.Authors))
	for _, a := range b.Authors {
		name := a.Name
		if name == "" {
			name = "Unknown"
		}
		authors = append(authors, name)
	}
	return GutenbergBook{
		GutenbergID:   b.ID,
		Title:         orDefault(b.Title, "Unknown"),
		Authors:       authors,
		Subjects:      head(b.Subjects, 5),
		DownloadCount: b.DownloadCount,
		TextURL:       plainTextURL(b.Formats),
		CoverURL:      b.Formats["image/jpeg"],
	}
}

// Search queries the Gutenberg catalog, restricted to books with a
// plain-text format so everything returned is actually readable.
func (c *GutenbergClient) Search(ctx context.Context, query string, limit int) (GutenbergSearch, error) {
	if limit <= 0 {
		limit = 8
	}

	q := url.Values{}
	q.Set("search", query)
	q.Set("mime_type", "text/plain")

	var body struct {
		Count   int64          `json:"count"`
		Results []gutendexBook `json:"results"`
	}
	if err := c.getJSON(ctx, c.BaseURL+"/books/?"+q.Encode(), &body); err != nil {
		return GutenbergSearch{}, err
	}

	out := GutenbergSearch{Total: body.Count}
	for _, item := range body.Results {
		if len(out.Books) >= limit {
			break
		}
		out.Books = append(out.Books, item.toBook())
	}
	return out, nil
}

// Chunk is one readable slice of a book's text.
type Chunk struct {
	GutenbergID int64
	Title       string
	Authors     []string
	Content     string
	Offset      int
	NextOffset  int
}

// FetchChunk downloads one chunk of a book's plain text using a ranged GET.
// chunkSize is measured in characters; the byte range requested is four
// times that to cover multi-byte text, and the chunk is truncated back to
// the last whole word within chunkSize characters. NextOffset is the byte
// offset to pass for the following chunk.
func (c *GutenbergClient) FetchChunk(ctx context.Context, gutenbergID int64, offset, chunkSize int) (Chunk, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if offset < 0 {
		offset = 0
	}

	var detail gutendexBook
	if err := c.getJSON(ctx, fmt.Sprintf("%s/books/%d/", c.BaseURL, gutenbergID), &detail); err != nil {
		return Chunk{}, err
	}
	textURL := plainTextURL(detail.Formats)
	if textURL == "" {
		return Chunk{}, fmt.Errorf("no plain text version available")
	}

	byteEnd := offset + chunkSize*4
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, textURL, nil)
	if err != nil {
		return Chunk{}, fmt.Errorf("build content request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, byteEnd))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Chunk{}, fmt.Errorf("fetch book text: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Chunk{}, fmt.Errorf("book text returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Chunk{}, fmt.Errorf("read book text: %w", err)
	}

	c.logger.Debug("fetched chunk", "gutenberg_id", gutenbergID, "offset", offset, "bytes", len(raw))

	book := detail.toBook()
	return Chunk{
		GutenbergID: gutenbergID,
		Title:       book.Title,
		Authors:     book.Authors,
		Content:     truncateChunk(strings.ToValidUTF8(string(raw), "�"), chunkSize),
		Offset:      offset,
		NextOffset:  offset + chunkSize*4,
	}, nil
}

// truncateChunk cuts the content to chunkSize characters, then backs off to
// the last space so no word is split mid-way. Content already within the
// limit is returned untouched.
func truncateChunk(content string, chunkSize int) string {
	runes := []rune(content)
	if len(runes) <= chunkSize {
		return content
	}
	cut := string(runes[:chunkSize])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut
}

func (c *GutenbergClient) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("gutenberg request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("gutenberg returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode gutenberg response: %w", err)
	}
	return nil
}
