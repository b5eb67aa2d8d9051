package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/mailspider/internal/config"
	"github.com/nao1215/mailspider/internal/model"
	"github.com/nao1215/mailspider/internal/store"
)

// seedArchive stores two finished sessions in a new archive under dir.
func seedArchive(t *testing.T, dir string) {
	t.Helper()

	archive, err := store.Open(dir, store.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer archive.Close()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := model.NewHarvest("session-a", "https://a.example/", start)
	first.AddLink("https://a.example/")
	first.AddEmail("info@a.example", "https://a.example/", start)
	first.Finish(model.StatusCompleted, start.Add(time.Second))

	second := model.NewHarvest("session-b", "https://b.example/", start.Add(time.Hour))
	second.AddLink("https://b.example/")
	second.AddEmail("sales@b.example", "https://b.example/", start.Add(time.Hour))
	second.AddEmail("info@b.example", "https://b.example/", start.Add(time.Hour))
	second.Finish(model.StatusCancelled, start.Add(time.Hour+time.Second))

	for _, h := range []*model.Harvest{first, second} {
		if err := archive.SaveHarvest(context.Background(), h); err != nil {
			t.Fatalf("failed to save harvest: %v", err)
		}
	}
}

func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("lists sessions newest first", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		seedArchive(t, dir)

		stdout, _, err := executeRoot(t, "history", "--db-dir", dir)
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		a := strings.Index(stdout, "session-a")
		b := strings.Index(stdout, "session-b")
		if a < 0 || b < 0 {
			t.Fatalf("expected both sessions, got %q", stdout)
		}
		if b > a {
			t.Error("expected newest session first")
		}
	})

	t.Run("limit restricts the listing", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		seedArchive(t, dir)

		stdout, _, err := executeRoot(t, "history", "--db-dir", dir, "-n", "1")
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if strings.Contains(stdout, "session-a") {
			t.Errorf("expected only the newest session, got %q", stdout)
		}
	})

	t.Run("shows one session as markdown", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		seedArchive(t, dir)

		stdout, _, err := executeRoot(t, "history", "--db-dir", dir, "--format", "markdown", "session-b")
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(stdout, "# mailspider Report") || !strings.Contains(stdout, "sales@b.example") {
			t.Errorf("unexpected report: %q", stdout)
		}
	})

	t.Run("searches archived emails", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		seedArchive(t, dir)

		stdout, _, err := executeRoot(t, "history", "--db-dir", dir, "--filter", "INFO@")
		if err != nil {
			t.Fatalf("history failed: %v", err)
		}
		if !strings.Contains(stdout, "info@a.example") || !strings.Contains(stdout, "info@b.example") {
			t.Errorf("expected both info addresses, got %q", stdout)
		}
		if strings.Contains(stdout, "sales@b.example") {
			t.Error("search should not return non-matching addresses")
		}
	})

	t.Run("deletes a session", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		seedArchive(t, dir)

		if _, _, err := executeRoot(t, "history", "--db-dir", dir, "--delete", "session-a"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		_, _, err := executeRoot(t, "history", "--db-dir", dir, "session-a")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		seedArchive(t, dir)

		_, _, err := executeRoot(t, "history", "--db-dir", dir, "--delete", "missing")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("missing archive", func(t *testing.T) {
		t.Parallel()

		if _, _, err := executeRoot(t, "history", "--db-dir", t.TempDir()); err == nil {
			t.Error("expected error for missing archive")
		}
	})

	t.Run("rejects xlsx", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeRoot(t, "history", "--db-dir", t.TempDir(), "--format", "xlsx", "x")
		if !errors.Is(err, config.ErrXLSXNeedsOutput) {
			t.Errorf("expected ErrXLSXNeedsOutput, got %v", err)
		}
	})
}

func TestCrawlSaveThenHistory(t *testing.T) {
	t.Parallel()

	server := newTestSite(t)
	dir := t.TempDir()

	_, stderr, err := executeRoot(t, "crawl",
		"--config", writeSiteConfig(t),
		"--quiet",
		"--save",
		"--db-dir", dir,
		"--filter", "sales",
		"-o", t.TempDir()+"/report.txt",
		server.URL,
	)
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if !strings.Contains(stderr, "Saved session") {
		t.Errorf("expected save confirmation, got %q", stderr)
	}

	// The archive keeps every address even though the report was filtered.
	stdout, _, err := executeRoot(t, "history", "--db-dir", dir, "--filter", "example")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	for _, want := range []string{"info@example.com", "sales@example.org", "lead@example.net"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("archive missing %s: %q", want, stdout)
		}
	}
}
