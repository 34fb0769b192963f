package library

import (
	"strings"
	"time"
)

// Book statuses. Transitions stamp dates: moving to StatusReading sets
// StartedAt once, moving to StatusFinished stamps FinishedAt on every
// transition.
const (
	StatusUnread   = "unread"
	StatusReading  = "reading"
	StatusFinished = "finished"
)

const dateLayout = "2006-01-02"

var dateNow = time.Now

// Book is one personal-library record. Dates are stored as YYYY-MM-DD
// strings; StartedAt and FinishedAt are empty until their transitions occur.
type Book struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Author         string `json:"author"`
	Genre          string `json:"genre,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Year           int    `json:"year,omitempty"`
	ISBN           string `json:"isbn,omitempty"`
	CoverURL       string `json:"cover_url,omitempty"`
	OpenLibraryKey string `json:"open_library_key,omitempty"`
	GutenbergID    int64  `json:"gutenberg_id,omitempty"`
	Source         string `json:"source"`
	AddedAt        string `json:"added_at"`
	Status         string `json:"status"`
	Rating         int    `json:"rating"`
	Review         string `json:"review,omitempty"`
	CurrentPage    int    `json:"current_page"`
	TotalPages     int    `json:"total_pages"`
	StartedAt      string `json:"started_at,omitempty"`
	FinishedAt     string `json:"finished_at,omitempty"`
}

// NewBook fills the defaults for a freshly added record.
func NewBook(title, author string) Book {
	return Book{
		Title:   title,
		Author:  author,
		Source:  "Personal",
		AddedAt: dateNow().Format(dateLayout),
		Status:  StatusUnread,
	}
}

// Patch is a sparse update: nil fields are left untouched.
type Patch struct {
	CurrentPage *int
	TotalPages  *int
	Status      *string
	Rating      *int
	Review      *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.CurrentPage == nil && p.TotalPages == nil && p.Status == nil &&
		p.Rating == nil && p.Review == nil
}

// ClampRating forces a rating into the valid [0,5] range.
func ClampRating(r int) int {
	if r < 0 {
		return 0
	}
	if r > 5 {
		return 5
	}
	return r
}

// Apply mutates the book with the patch. A transition to reading stamps
// StartedAt only if it is still empty; a transition to finished stamps
// FinishedAt every time, so re-finishing refreshes the date.
func (p Patch) Apply(b *Book) {
	if p.CurrentPage != nil {
		b.CurrentPage = *p.CurrentPage
	}
	if p.TotalPages != nil {
		b.TotalPages = *p.TotalPages
	}
	if p.Status != nil {
		b.Status = *p.Status
		today := dateNow().Format(dateLayout)
		switch *p.Status {
		case StatusReading:
			if b.StartedAt == "" {
				b.StartedAt = today
			}
		case StatusFinished:
			b.FinishedAt = today
		}
	}
	if p.Rating != nil {
		b.Rating = ClampRating(*p.Rating)
	}
	if p.Review != nil {
		b.Review = *p.Review
	}
}

// Filter selects books for listing. Genre and Query are case-insensitive
// substring matches (Query against title or author); Status is exact.
type Filter struct {
	Genre  string
	Query  string
	Status string
}

// Match reports whether the book passes every set criterion.
func (f Filter) Match(b Book) bool {
	if f.Genre != "" && !strings.Contains(strings.ToLower(b.Genre), strings.ToLower(f.Genre)) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(b.Title), q) &&
			!strings.Contains(strings.ToLower(b.Author), q) {
			return false
		}
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	return true
}

// FilterBooks applies the filter over an already ordered slice.
func FilterBooks(books []Book, f Filter) []Book {
	out := make([]Book, 0, len(books))
	for _, b := range books {
		if f.Match(b) {
			out = append(out, b)
		}
	}
	return out
}
