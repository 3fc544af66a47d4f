package dump_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"paperlink/internal/config"
	"paperlink/internal/dump"
	"paperlink/internal/services"
)

func TestOpenDownloadsAndReads(t *testing.T) {
	const payload = `[{"dataset_id": 1}]`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, payload)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "dump.json")
	f := dump.NewFetcher(nil)
	rc, err := f.Open(context.Background(), config.Source{Tag: "test", URL: server.URL, Path: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("unexpected dump content: %s", data)
	}
}

func TestOpenUsesLocalFileWithoutURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatalf("seed dump: %v", err)
	}
	f := dump.NewFetcher(nil)
	rc, err := f.Open(context.Background(), config.Source{Tag: "test", Path: path})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	rc.Close()
}

func TestOpenMissingLocalFileIsConfigurationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	f := dump.NewFetcher(nil)
	_, err := f.Open(context.Background(), config.Source{Tag: "test", Path: path})
	if !services.IsFatal(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestOpenClassifiesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := dump.NewFetcher(nil)
	_, err := f.Open(context.Background(), config.Source{
		Tag:  "test",
		URL:  server.URL,
		Path: filepath.Join(t.TempDir(), "dump.json"),
	})
	if !services.IsTransient(err) {
		t.Fatalf("5xx should be transient, got %v", err)
	}
}

func TestOpenFailedDownloadKeepsPreviousDump(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "dump.json")
	if err := os.WriteFile(path, []byte(`["previous"]`), 0o644); err != nil {
		t.Fatalf("seed dump: %v", err)
	}

	f := dump.NewFetcher(nil)
	if _, err := f.Open(context.Background(), config.Source{Tag: "test", URL: server.URL, Path: path}); err == nil {
		t.Fatal("expected download error")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read previous dump: %v", err)
	}
	if string(data) != `["previous"]` {
		t.Fatalf("previous dump was clobbered: %s", data)
	}
}
