package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// maxPageContent caps scraped page content at load. The scrapers apply the
// same budget, but exported JSON from older runs may exceed it.
const maxPageContent = 8000

// CorrectionSink persists corrections durably. Implemented by storage.Store.
type CorrectionSink interface {
	SaveCorrection(c Correction) error
	ListCorrections() ([]Correction, error)
}

// Store holds the four retrieval corpora. KB articles, tickets, and pages are
// read-only after Load and safe for concurrent reads. Corrections are
// append-only; writes are serialized through a mutex and persisted via the
// CorrectionSink before becoming visible to readers.
type Store struct {
	articles []Article
	tickets  []Ticket
	pages    []Page

	kbLoaded      bool
	ticketsLoaded bool
	pagesLoaded   bool

	mu          sync.RWMutex
	corrections []Correction
	sink        CorrectionSink
}

// NewStore creates an empty Store. Corrections submitted at runtime are
// persisted through sink; pass nil for a memory-only store (tests).
func NewStore(sink CorrectionSink) *Store {
	return &Store{sink: sink}
}

// Load reads the KB, ticket, and page corpora from JSON files in dataDir and
// the correction corpus from the sink, concurrently. A missing or unparseable
// file degrades that source to empty instead of failing: the KB is the
// primary source so its absence is logged as an error, the rest as warnings.
func (s *Store) Load(ctx context.Context, dataDir string) error {
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		path := filepath.Join(dataDir, "kb-articles.json")
		if err := readJSON(path, &s.articles); err != nil {
			slog.Error("KB articles unavailable, retrieval degrades to empty", "path", path, "error", err)
			return nil
		}
		s.kbLoaded = true
		slog.Info("KB articles loaded", "count", len(s.articles))
		return nil
	})

	g.Go(func() error {
		path := filepath.Join(dataDir, "tickets.json")
		if err := readJSON(path, &s.tickets); err != nil {
			slog.Warn("no support tickets loaded (optional)", "path", path, "error", err)
			return nil
		}
		for i := range s.tickets {
			s.tickets[i].Description = StripHTML(s.tickets[i].Description)
			s.tickets[i].Resolution = StripHTML(s.tickets[i].Resolution)
		}
		s.ticketsLoaded = true
		slog.Info("support tickets loaded", "count", len(s.tickets))
		return nil
	})

	g.Go(func() error {
		path := filepath.Join(dataDir, "pages.json")
		if err := readJSON(path, &s.pages); err != nil {
			slog.Warn("no scraped pages loaded (optional)", "path", path, "error", err)
			return nil
		}
		for i := range s.pages {
			s.pages[i].Content = truncateRunes(s.pages[i].Content, maxPageContent)
		}
		s.pagesLoaded = true
		slog.Info("scraped pages loaded", "count", len(s.pages))
		return nil
	})

	g.Go(func() error {
		if s.sink == nil {
			return nil
		}
		corrections, err := s.sink.ListCorrections()
		if err != nil {
			return fmt.Errorf("loading corrections: %w", err)
		}
		s.mu.Lock()
		s.corrections = corrections
		s.mu.Unlock()
		slog.Info("corrections loaded", "count", len(corrections))
		return nil
	})

	return g.Wait()
}

// LoadManualsDir parses every PDF in dir into a KB article and appends it to
// the article corpus. Called after Load, before the store is shared.
func (s *Store) LoadManualsDir(dir string) error {
	articles, err := loadManuals(dir)
	if err != nil {
		return err
	}
	if len(articles) > 0 {
		s.articles = append(s.articles, articles...)
		s.kbLoaded = true
		slog.Info("PDF manuals loaded into KB", "count", len(articles))
	}
	return nil
}

// truncateRunes cuts s to max runes. Byte slicing would split a multi-byte
// rune at the boundary.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Articles returns the KB corpus. The slice must not be mutated.
func (s *Store) Articles() []Article { return s.articles }

// Tickets returns the ticket corpus. The slice must not be mutated.
func (s *Store) Tickets() []Ticket { return s.tickets }

// Pages returns the page corpus. The slice must not be mutated.
func (s *Store) Pages() []Page { return s.pages }

// Corrections returns a snapshot of the correction corpus.
func (s *Store) Corrections() []Correction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Correction, len(s.corrections))
	copy(out, s.corrections)
	return out
}

// AddCorrection persists c and, on success, appends it to the in-memory
// corpus. The persisted file is the source of truth: if the write fails, the
// correction is not visible to retrieval and the error is returned so the
// caller can tell the client the correction may not have been saved.
func (s *Store) AddCorrection(c Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != nil {
		if err := s.sink.SaveCorrection(c); err != nil {
			return fmt.Errorf("persisting correction: %w", err)
		}
	}
	s.corrections = append(s.corrections, c)
	return nil
}

// Status reports per-corpus load state. Corrections count as loaded even when
// empty: the store is created on first submission.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		KB:          SourceState{Loaded: s.kbLoaded, Count: len(s.articles)},
		Tickets:     SourceState{Loaded: s.ticketsLoaded, Count: len(s.tickets)},
		Pages:       SourceState{Loaded: s.pagesLoaded, Count: len(s.pages)},
		Corrections: SourceState{Loaded: true, Count: len(s.corrections)},
	}
}

// Categories returns the distinct non-empty KB categories, in first-seen order.
func (s *Store) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, a := range s.articles {
		if a.Category == "" {
			continue
		}
		if _, ok := seen[a.Category]; ok {
			continue
		}
		seen[a.Category] = struct{}{}
		out = append(out, a.Category)
	}
	return out
}
