// Package catalogs holds the clients for the public book catalogs: Open
// Library for discovery metadata and Project Gutenberg (via Gutendex) for
// free full-text content.
package catalogs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultOpenLibraryURL = "https://openlibrary.org"

	// searchFields keeps the search responses small; Open Library returns
	// every stored field otherwise.
	searchFields = "key,title,author_name,first_publish_year,number_of_pages_median,subject,isbn,cover_i,publisher"
)

// OpenLibraryClient talks to the Open Library search and works APIs.
type OpenLibraryClient struct {
	BaseURL string
	HTTP    *http.Client

	logger *slog.Logger
}

// NewOpenLibraryClient builds a client against the public API.
func NewOpenLibraryClient() *OpenLibraryClient {
	return &OpenLibraryClient{
		BaseURL: defaultOpenLibraryURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default().With("component", "openlibrary"),
	}
}

// OpenLibraryBook is one search hit, trimmed to the fields the assistant
// needs to describe and add a book.
type OpenLibraryBook struct {
	Title          string   `json:"title"`
	Authors        []string `json:"authors"`
	Year           int      `json:"year,omitempty"`
	Pages          int      `json:"pages,omitempty"`
	Subjects       []string `json:"subjects,omitempty"`
	ISBN           string   `json:"isbn,omitempty"`
	CoverID        int64    `json:"cover_id,omitempty"`
	Publisher      string   `json:"publisher,omitempty"`
	OpenLibraryKey string   `json:"open_library_key"`
	Source         string   `json:"source"`
}

// OpenLibrarySearch is the result of one search call.
type OpenLibrarySearch struct {
	Total int64
	Books []OpenLibraryBook
}

type openLibrarySearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	PagesMedian      int      `json:"number_of_pages_median"`
	Subject          []string `json:"subject"`
	ISBN             []string `json:"isbn"`
	CoverI           int64    `json:"cover_i"`
	Publisher        []string `json:"publisher"`
}

// Search queries Open Library by free text.
func (c *OpenLibraryClient) Search(ctx context.Context, query string, limit int) (OpenLibrarySearch, error) {
	if limit <= 0 {
		limit = 8
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", searchFields)

	var body struct {
		NumFound int64                  `json:"numFound"`
		Docs     []openLibrarySearchDoc `json:"docs"`
	}
	if err := c.getJSON(ctx, c.BaseURL+"/search.json?"+q.Encode(), &body); err != nil {
		return OpenLibrarySearch{}, err
	}

	out := OpenLibrarySearch{Total: body.NumFound, Books: make([]OpenLibraryBook, 0, len(body.Docs))}
	for _, doc := range body.Docs {
		book := OpenLibraryBook{
			Title:          orDefault(doc.Title, "Unknown"),
			Authors:        doc.AuthorName,
			Year:           doc.FirstPublishYear,
			Pages:          doc.PagesMedian,
			Subjects:       head(doc.Subject, 5),
			CoverID:        doc.CoverI,
			OpenLibraryKey: doc.Key,
			Source:         "Open Library",
		}
		if len(book.Authors) == 0 {
			book.Authors = []string{"Unknown"}
		}
		if len(doc.ISBN) > 0 {
			book.ISBN = doc.ISBN[0]
		}
		if len(doc.Publisher) > 0 {
			book.Publisher = doc.Publisher[0]
		}
		out.Books = append(out.Books, book)
	}
	c.logger.Debug("search complete", "query", query, "total", out.Total, "returned", len(out.Books))
	return out, nil
}

// OpenLibraryDetails is the expanded description of one work.
type OpenLibraryDetails struct {
	Title       string
	Description string
	Subjects    []string
}

// workDescription accepts the two shapes Open Library uses for a work's
// description: a bare string, or {"type": ..., "value": ...}.
type workDescription string

func (d *workDescription) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = workDescription(s)
		return nil
	}
	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*d = workDescription(wrapped.Value)
	return nil
}

// Details fetches the work record behind an Open Library key such as
// "/works/OL893415W".
func (c *OpenLibraryClient) Details(ctx context.Context, key string) (OpenLibraryDetails, error) {
	var body struct {
		Title       string          `json:"title"`
		Description workDescription `json:"description"`
		Subjects    []string        `json:"subjects"`
	}
	if err := c.getJSON(ctx, c.BaseURL+key+".json", &body); err != nil {
		return OpenLibraryDetails{}, err
	}

	desc := string(body.Description)
	if desc == "" {
		desc = "No description available."
	}
	return OpenLibraryDetails{
		Title:       body.Title,
		Description: desc,
		Subjects:    head(body.Subjects, 10),
	}, nil
}

func (c *OpenLibraryClient) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("open library request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("open library returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode open library response: %w", err)
	}
	return nil
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
