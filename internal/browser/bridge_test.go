package browser

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBridge_AvailableWithMissingExecPath(t *testing.T) {
	b := NewBridge(BridgeConfig{ExecPath: "/nonexistent/chrome", Logger: testLogger()})
	if b.Available() {
		t.Fatal("expected bridge with a missing binary to be unavailable")
	}
}

func TestBridge_PrintPDF(t *testing.T) {
	b := NewBridge(BridgeConfig{ProfileDir: t.TempDir(), Timeout: 30 * time.Second, Logger: testLogger()})
	if !b.Available() {
		t.Skip("chrome not installed")
	}

	out, err := b.PrintPDF(context.Background(), "<html><body><h1>Day 1</h1></body></html>", PrintOptions{})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("expected PDF output, got %q", out[:min(len(out), 16)])
	}
}
