package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"paperlink/internal/logging"
	"paperlink/internal/services"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("pipeline run started", logging.String("source", "ucimlrepo"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "pipeline run started") {
		t.Fatalf("log output missing message: %s", data)
	}
	if !strings.Contains(string(data), `"source":"ucimlrepo"`) {
		t.Fatalf("log output missing attr: %s", data)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithStage(ctx, "match")
	ctx = services.WithPaperID(ctx, "2101.00001")

	fields := logging.ContextFields(ctx)
	if len(fields) != 3 {
		t.Fatalf("expected 3 context fields, got %d", len(fields))
	}
	keys := map[string]bool{}
	for _, f := range fields {
		keys[f.Key] = true
	}
	for _, want := range []string{logging.FieldRunID, logging.FieldStage, logging.FieldPaperID} {
		if !keys[want] {
			t.Fatalf("missing field %s", want)
		}
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("should not panic", logging.Error(nil))
}
