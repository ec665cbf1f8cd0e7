// Package document renders itinerary bodies into paginated PDF files and
// commits them atomically to the output directory.
package document

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"tripkit/internal/domain"
	"tripkit/internal/metrics"
)

const (
	DefaultTitle = "AI Travel Plan"
	pdfMIME      = "application/pdf"
)

// Synthesizer writes itinerary documents. It is safe for concurrent use.
type Synthesizer struct {
	dir      string
	title    string
	renderer Renderer
	ledger   domain.Ledger
	logger   *slog.Logger
	now      func() time.Time
	seq      *atomic.Uint64
}

// Config holds the synthesizer's dependencies. Ledger is optional.
type Config struct {
	OutputDir string
	Title     string
	Renderer  Renderer
	Ledger    domain.Ledger
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	if cfg.OutputDir == "" {
		return nil, errors.New("document output directory is required")
	}
	dir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Renderer == nil {
		cfg.Renderer = NewPDFRenderer()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Synthesizer{
		dir:      dir,
		title:    cfg.Title,
		renderer: cfg.Renderer,
		ledger:   cfg.Ledger,
		logger:   cfg.Logger,
		now:      cfg.Now,
		seq:      atomic.NewUint64(0),
	}, nil
}

// Dir returns the absolute output directory.
func (s *Synthesizer) Dir() string { return s.dir }

// Save renders body and commits it under a fresh name. The returned path is
// absolute and refers to a complete file; on error nothing is left behind.
func (s *Synthesizer) Save(ctx context.Context, body string) (domain.ItineraryDocument, error) {
	if strings.TrimSpace(body) == "" {
		return domain.ItineraryDocument{}, fmt.Errorf("%w: itinerary body is empty", domain.ErrInvalidRequest)
	}

	created := s.now()
	page := Page{
		Title:     s.title,
		Generated: created,
		Body:      body,
		Blocks:    Parse(body),
	}

	doc, err := s.commit(ctx, page)
	if err != nil {
		metrics.DocumentsFailed.Inc()
		s.logger.Error("itinerary write failed", "renderer", s.renderer.Name(), "err", err)
		return domain.ItineraryDocument{}, fmt.Errorf("%w: %v", domain.ErrDocumentWriteError, err)
	}
	doc.Body = body
	doc.CreatedAt = created
	doc.Renderer = s.renderer.Name()

	metrics.DocumentsSaved.Inc()
	metrics.DocumentBytes.Add(doc.Bytes)
	s.logger.Info("itinerary saved", "path", doc.Path, "bytes", doc.Bytes)

	if s.ledger != nil {
		if err := s.ledger.RecordDocument(ctx, doc); err != nil {
			s.logger.Warn("cannot record itinerary in ledger", "path", doc.Path, "err", err)
		}
	}
	return doc, nil
}

func (s *Synthesizer) commit(ctx context.Context, page Page) (doc domain.ItineraryDocument, err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return doc, fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".itinerary-*.part")
	if err != nil {
		return doc, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	hash := sha256.New()
	counter := &countingWriter{}
	bw := bufio.NewWriter(io.MultiWriter(tmp, hash, counter))

	if err = s.renderer.Render(ctx, page, bw); err != nil {
		return doc, fmt.Errorf("render: %w", err)
	}
	if err = bw.Flush(); err != nil {
		return doc, fmt.Errorf("flush: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return doc, fmt.Errorf("sync: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return doc, fmt.Errorf("close: %w", err)
	}

	mt, err := mimetype.DetectFile(tmpName)
	if err != nil {
		return doc, fmt.Errorf("detect output type: %w", err)
	}
	if !mt.Is(pdfMIME) {
		err = fmt.Errorf("renderer %s produced %s, want %s", s.renderer.Name(), mt.String(), pdfMIME)
		return doc, err
	}
	if err = ctx.Err(); err != nil {
		return doc, err
	}

	id, final := s.nextName(page.Generated)
	if err = os.Rename(tmpName, final); err != nil {
		return doc, fmt.Errorf("commit: %w", err)
	}
	syncDir(s.dir)

	return domain.ItineraryDocument{
		ID:     id,
		Path:   final,
		Bytes:  counter.n,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// nextName returns an unused file name. The timestamp carries nanoseconds,
// the process-wide sequence separates writers within one tick, and the
// random suffix separates processes sharing a directory.
func (s *Synthesizer) nextName(t time.Time) (id, path string) {
	for {
		utc := t.UTC()
		id = fmt.Sprintf("itinerary_%s_%09d_%d_%s",
			utc.Format("20060102_150405"), utc.Nanosecond(), s.seq.Inc(), uuid.NewString()[:8])
		path = filepath.Join(s.dir, id+".pdf")
		if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
			return id, path
		}
	}
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
