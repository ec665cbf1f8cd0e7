package document

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tripkit/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSynthesizer(t *testing.T, cfg Config) *Synthesizer {
	t.Helper()
	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	cfg.Logger = testLogger()
	s, err := NewSynthesizer(cfg)
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}
	return s
}

// failingRenderer writes some bytes, then fails.
type failingRenderer struct{}

func (failingRenderer) Name() string { return "failing" }
func (failingRenderer) Render(ctx context.Context, page Page, w io.Writer) error {
	w.Write([]byte("%PDF-1.4 partial"))
	return errors.New("boom")
}

// textRenderer writes something that is not a PDF.
type textRenderer struct{}

func (textRenderer) Name() string { return "text" }
func (textRenderer) Render(ctx context.Context, page Page, w io.Writer) error {
	_, err := io.WriteString(w, page.Body)
	return err
}

// stubLedger records documents in memory.
type stubLedger struct {
	mu   sync.Mutex
	docs []domain.ItineraryDocument
	err  error
}

func (l *stubLedger) RecordDocument(ctx context.Context, doc domain.ItineraryDocument) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.docs = append(l.docs, doc)
	return nil
}
func (l *stubLedger) ListDocuments(ctx context.Context, limit int) ([]domain.ItineraryDocument, error) {
	return l.docs, nil
}
func (l *stubLedger) GetDocument(ctx context.Context, id string) (*domain.ItineraryDocument, error) {
	return nil, nil
}
func (l *stubLedger) LogInvocation(ctx context.Context, rec domain.InvocationRecord) error {
	return nil
}
func (l *stubLedger) RecentInvocations(ctx context.Context, limit int) ([]domain.InvocationRecord, error) {
	return nil, nil
}
func (l *stubLedger) Close() error { return nil }

var _ domain.Ledger = (*stubLedger)(nil)

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSave_WritesReadablePDF(t *testing.T) {
	s := newTestSynthesizer(t, Config{})

	doc, err := s.Save(context.Background(), "# Day 1\nVisit the museum.")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !filepath.IsAbs(doc.Path) {
		t.Fatalf("expected absolute path, got %q", doc.Path)
	}
	if !strings.HasSuffix(doc.Path, ".pdf") {
		t.Fatalf("expected .pdf path, got %q", doc.Path)
	}
	info, err := os.Stat(doc.Path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != doc.Bytes || doc.Bytes == 0 {
		t.Fatalf("size mismatch: file %d, reported %d", info.Size(), doc.Bytes)
	}
	if len(doc.SHA256) != 64 {
		t.Fatalf("unexpected digest %q", doc.SHA256)
	}

	text, err := ExtractText(doc.Path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	flat := strings.Join(strings.Fields(text), "")
	for _, want := range []string{"Day1", "Visitthemuseum.", "AITravelPlan"} {
		if !strings.Contains(flat, want) {
			t.Errorf("extracted text missing %q:\n%s", want, text)
		}
	}
}

func TestSave_NoTempFilesLeft(t *testing.T) {
	s := newTestSynthesizer(t, Config{})
	if _, err := s.Save(context.Background(), "# Day 1"); err != nil {
		t.Fatal(err)
	}
	names := dirEntries(t, s.Dir())
	if len(names) != 1 || !strings.HasPrefix(names[0], "itinerary_") {
		t.Fatalf("expected exactly one committed file, got %v", names)
	}
}

func TestSave_EmptyBody(t *testing.T) {
	s := newTestSynthesizer(t, Config{})
	for _, body := range []string{"", "   \n\t"} {
		if _, err := s.Save(context.Background(), body); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest for %q, got %v", body, err)
		}
	}
	if names := dirEntries(t, s.Dir()); len(names) != 0 {
		t.Fatalf("expected empty directory, got %v", names)
	}
}

func TestSave_RendererFailureLeavesNothing(t *testing.T) {
	s := newTestSynthesizer(t, Config{Renderer: failingRenderer{}})

	doc, err := s.Save(context.Background(), "# Day 1")
	if !errors.Is(err, domain.ErrDocumentWriteError) {
		t.Fatalf("expected ErrDocumentWriteError, got %v", err)
	}
	if doc.Path != "" {
		t.Fatalf("expected no path on failure, got %q", doc.Path)
	}
	if names := dirEntries(t, s.Dir()); len(names) != 0 {
		t.Fatalf("expected no files after failure, got %v", names)
	}
}

func TestSave_RejectsNonPDFOutput(t *testing.T) {
	s := newTestSynthesizer(t, Config{Renderer: textRenderer{}})

	if _, err := s.Save(context.Background(), "# Day 1"); !errors.Is(err, domain.ErrDocumentWriteError) {
		t.Fatalf("expected ErrDocumentWriteError, got %v", err)
	}
	if names := dirEntries(t, s.Dir()); len(names) != 0 {
		t.Fatalf("expected no files after failure, got %v", names)
	}
}

func TestSave_UnwritableDirectory(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestSynthesizer(t, Config{OutputDir: filepath.Join(blocker, "out")})

	if _, err := s.Save(context.Background(), "# Day 1"); !errors.Is(err, domain.ErrDocumentWriteError) {
		t.Fatalf("expected ErrDocumentWriteError, got %v", err)
	}
}

func TestSave_CancelledContext(t *testing.T) {
	s := newTestSynthesizer(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Save(ctx, "# Day 1\nVisit the museum."); !errors.Is(err, domain.ErrDocumentWriteError) {
		t.Fatalf("expected ErrDocumentWriteError, got %v", err)
	}
	if names := dirEntries(t, s.Dir()); len(names) != 0 {
		t.Fatalf("expected no files after cancellation, got %v", names)
	}
}

func TestSave_ConcurrentNamesDistinct(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSynthesizer(t, Config{Now: func() time.Time { return fixed }})

	const n = 16
	paths := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc, err := s.Save(context.Background(), "# Day 1\nSame body, same clock.")
			paths[i], errs[i] = doc.Path, err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("save %d: %v", i, errs[i])
		}
		if seen[paths[i]] {
			t.Fatalf("duplicate path %q", paths[i])
		}
		seen[paths[i]] = true
	}
	if names := dirEntries(t, s.Dir()); len(names) != n {
		t.Fatalf("expected %d files, got %d", n, len(names))
	}
}

func TestSave_RecordsInLedger(t *testing.T) {
	ledger := &stubLedger{}
	s := newTestSynthesizer(t, Config{Ledger: ledger})

	doc, err := s.Save(context.Background(), "# Day 1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ledger.docs) != 1 || ledger.docs[0].Path != doc.Path || ledger.docs[0].Renderer != "pdf" {
		t.Fatalf("unexpected ledger contents %+v", ledger.docs)
	}
}

func TestSave_LedgerFailureDoesNotFailSave(t *testing.T) {
	s := newTestSynthesizer(t, Config{Ledger: &stubLedger{err: errors.New("disk full")}})

	doc, err := s.Save(context.Background(), "# Day 1")
	if err != nil {
		t.Fatalf("expected success despite ledger failure, got %v", err)
	}
	if _, err := os.Stat(doc.Path); err != nil {
		t.Fatalf("committed file missing: %v", err)
	}
}

func TestSave_CustomTitleAndUnicode(t *testing.T) {
	s := newTestSynthesizer(t, Config{Title: "Paris Weekend"})

	doc, err := s.Save(context.Background(), "# Café crawl ☕\n- Crème brûlée – 8 €\n\n> Don’t forget 🎒")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	text, err := ExtractText(doc.Path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	joined := strings.Join(strings.Fields(text), "")
	for _, want := range []string{"ParisWeekend", "Café", "Crèmebrûlée", "8€", "Don’tforget"} {
		if !strings.Contains(joined, want) {
			t.Errorf("%q missing from %q", want, text)
		}
	}
}

func TestSave_KeepsNonLatinText(t *testing.T) {
	s := newTestSynthesizer(t, Config{})

	doc, err := s.Save(context.Background(), "# Day 1: 東京 and Kraków\nVisit Łazienki Park — 20°C.\n- Ночь в Москве\n\n```\nπ ≈ 3.14\n```")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	text, err := ExtractText(doc.Path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	joined := strings.Join(strings.Fields(text), "")
	for _, want := range []string{"東京", "Kraków", "Łazienki", "—20°C", "Москве", "π≈3.14"} {
		if !strings.Contains(joined, want) {
			t.Errorf("%q missing from %q", want, text)
		}
	}
}

func TestNewPDFRendererWithFont_MissingFile(t *testing.T) {
	if _, err := NewPDFRendererWithFont(filepath.Join(t.TempDir(), "missing.ttf")); err == nil {
		t.Fatal("expected an error for a missing font file")
	}
}

func TestNewSynthesizer_RequiresDir(t *testing.T) {
	if _, err := NewSynthesizer(Config{}); err == nil {
		t.Fatal("expected error without output directory")
	}
}

func TestChromeRenderer(t *testing.T) {
	// Exercised only where a Chrome binary is installed.
	r := newChromeForTest(t)
	s := newTestSynthesizer(t, Config{Renderer: r})

	doc, err := s.Save(context.Background(), "# Day 1\nVisit the museum.")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if doc.Renderer != "chrome" {
		t.Fatalf("expected chrome renderer, got %q", doc.Renderer)
	}
}
