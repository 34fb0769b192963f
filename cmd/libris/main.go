// Command libris is an interactive book-discovery assistant. It pairs a
// Gemini-backed agent with Open Library search, Project Gutenberg full text,
// and a persistent personal library.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	libris "github.com/libris-ai/libris"
	"github.com/libris-ai/libris/src/catalogs"
	"github.com/libris-ai/libris/src/config"
	"github.com/libris-ai/libris/src/library"
	"github.com/libris-ai/libris/src/models"
	"github.com/libris-ai/libris/src/tools"
)

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	textColor   = color.New(color.FgWhite)
	toolColor   = color.New(color.FgYellow)
	dimColor    = color.New(color.FgHiBlack)
	errColor    = color.New(color.FgRed, color.Bold)
	titleColor  = color.New(color.FgGreen, color.Bold)
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	setupLogging(cfg.Logging)

	if err := run(cfg); err != nil {
		errColor.Fprintf(os.Stderr, "libris: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Model.APIKey == "" {
		return fmt.Errorf("no API key configured; set GEMINI_API_KEY or model.api_key")
	}

	model, err := models.NewGeminiModel(ctx, cfg.Model.APIKey, cfg.Model.Name)
	if err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	defer model.Close()

	store, err := library.Open(ctx, cfg.Library)
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer store.Close()

	gutenberg := catalogs.NewGutenbergClient()
	toolbox := tools.New(store, catalogs.NewOpenLibraryClient(), gutenberg)

	catalog := libris.NewToolCatalog()
	if err := toolbox.Register(catalog); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	agent, err := libris.New(libris.Options{
		Model:         model,
		Catalog:       catalog,
		MaxRounds:     cfg.Agent.MaxRounds,
		ModelAttempts: cfg.Agent.ModelAttempts,
		RetryBackoff:  cfg.Agent.RetryBackoff,
		Workers:       cfg.Agent.Workers,
	})
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	repl := &repl{
		agent:     agent,
		session:   libris.NewSession(),
		store:     store,
		gutenberg: gutenberg,
	}
	return repl.loop(ctx)
}

type repl struct {
	agent     *libris.Agent
	session   *libris.Session
	store     library.Store
	gutenberg *catalogs.GutenbergClient
}

func (r *repl) loop(ctx context.Context) error {
	titleColor.Println("libris — your personal librarian")
	dimColor.Println("ask about books, or try /books /read <id> /next /stats /reset /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptColor.Print("\nyou> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				return nil
			}
			continue
		}

		r.turn(ctx, line)
	}
}

// command handles the local slash commands; returns true on /quit.
func (r *repl) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		dimColor.Println("happy reading!")
		return true
	case "/books":
		r.printBooks(ctx)
	case "/read":
		if len(fields) < 2 {
			errColor.Println("usage: /read <book-id>")
			break
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			errColor.Println("usage: /read <book-id>")
			break
		}
		r.startReading(ctx, id)
	case "/next":
		r.nextChunk(ctx)
	case "/stats":
		r.printStats(ctx)
	case "/reset":
		r.session.Reset()
		dimColor.Println("conversation cleared")
	default:
		errColor.Printf("unknown command %s\n", fields[0])
	}
	return false
}

func (r *repl) turn(ctx context.Context, input string) {
	events, err := r.agent.Run(ctx, r.session, input)
	if err != nil {
		errColor.Println(err)
		return
	}
	for ev := range events {
		switch ev.Kind {
		case libris.EventText:
			textColor.Println(ev.Text)
		case libris.EventToolCall:
			toolColor.Printf("→ %s %s\n", ev.Tool, ev.Args)
		case libris.EventToolResult:
			dimColor.Printf("← %s (%d bytes)\n", ev.Tool, ev.Size)
		case libris.EventError:
			errColor.Println(ev.Text)
		}
	}
}

func (r *repl) printBooks(ctx context.Context) {
	books, err := r.store.List(ctx)
	if err != nil {
		errColor.Println(err)
		return
	}
	if len(books) == 0 {
		dimColor.Println("your library is empty — ask me to find you something!")
		return
	}
	for _, b := range books {
		stars := strings.Repeat("★", b.Rating)
		line := fmt.Sprintf("#%d %s — %s [%s]", b.ID, b.Title, b.Author, b.Status)
		if stars != "" {
			line += " " + stars
		}
		if b.GutenbergID != 0 {
			line += " (free on Gutenberg)"
		}
		textColor.Println(line)
	}
}

// startReading opens a book in the reader: unread books move to reading,
// and the first chunk is fetched from Gutenberg.
func (r *repl) startReading(ctx context.Context, id int64) {
	book, err := r.store.Get(ctx, id)
	if err != nil {
		errColor.Printf("book #%d: %v\n", id, err)
		return
	}
	if book.GutenbergID == 0 {
		errColor.Printf("'%s' has no Gutenberg text to read\n", book.Title)
		return
	}

	if book.Status == library.StatusUnread {
		status := library.StatusReading
		if _, err := r.store.Update(ctx, id, library.Patch{Status: &status}); err != nil {
			errColor.Println(err)
			return
		}
	}

	r.session.SetReading(libris.ReadingCursor{BookID: id})
	titleColor.Printf("— %s —\n", book.Title)
	r.nextChunk(ctx)
}

func (r *repl) nextChunk(ctx context.Context) {
	cursor := r.session.Reading()
	if cursor.BookID == 0 {
		errColor.Println("nothing open — use /read <book-id> first")
		return
	}
	book, err := r.store.Get(ctx, cursor.BookID)
	if err != nil {
		errColor.Println(err)
		return
	}

	chunk, err := r.gutenberg.FetchChunk(ctx, book.GutenbergID, cursor.Offset, catalogs.DefaultChunkSize)
	if err != nil {
		errColor.Println(err)
		return
	}
	textColor.Println(chunk.Content)
	dimColor.Println("(/next for more)")
	r.session.SetReading(libris.ReadingCursor{BookID: cursor.BookID, Offset: chunk.NextOffset})
}

func (r *repl) printStats(ctx context.Context) {
	books, err := r.store.List(ctx)
	if err != nil {
		errColor.Println(err)
		return
	}

	byStatus := map[string]int{}
	rated, ratingSum := 0, 0
	for _, b := range books {
		byStatus[b.Status]++
		if b.Rating > 0 {
			rated++
			ratingSum += b.Rating
		}
	}

	textColor.Printf("%d books: %d unread, %d reading, %d finished\n",
		len(books), byStatus[library.StatusUnread], byStatus[library.StatusReading],
		byStatus[library.StatusFinished])
	if rated > 0 {
		textColor.Printf("average rating %.1f★ across %d rated books\n",
			float64(ratingSum)/float64(rated), rated)
	}
}
