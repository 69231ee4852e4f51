package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
)

func newTestRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(config.RecorderConfig{Enabled: true, Dir: dir}, nil, logger), dir
}

func snap(slug string) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID: "m1",
		Slug:     slug,
		YesBids:  []domain.Level{{Price: 440, Size: 10}},
		YesAsks:  []domain.Level{{Price: 470, Size: 10}},
		NoBids:   []domain.Level{{Price: 510, Size: 10}},
		NoAsks:   []domain.Level{{Price: 540, Size: 10}},
		SyncYes:  true,
		SyncNo:   true,
	}
}

func readLines(t *testing.T, path string) []line {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recording: %v", err)
	}
	defer f.Close()

	var lines []line
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			t.Fatalf("bad JSONL line %q: %v", sc.Text(), err)
		}
		lines = append(lines, l)
	}
	return lines
}

func TestWindowLifecycleProducesOneFile(t *testing.T) {
	r, dir := newTestRecorder(t)
	ctx := context.Background()

	r.OnSnapshot(ctx, snap("w1"))
	r.OnSignal(ctx, domain.TradeSignal{ID: "s1", Outcome: domain.OutcomeYes, Price: 470, Size: 10, Reason: "test"})
	r.OnFill(ctx, domain.FillEvent{OrderID: "o1", Size: 10, Price: 470},
		domain.Order{ID: "o1", Outcome: domain.OutcomeYes, Direction: domain.DirectionBuy, Status: domain.OrderStatusFilled})
	r.OnRollover(ctx, domain.Round{MarketID: "m1", Slug: "w1", ClosedAt: time.Now()})

	lines := readLines(t, filepath.Join(dir, "w1.jsonl"))
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4", len(lines))
	}
	want := []string{"quote", "signal", "fill", "round"}
	for i, typ := range want {
		if lines[i].Type != typ {
			t.Errorf("line %d type = %q, want %q", i, lines[i].Type, typ)
		}
	}
}

func TestNewSlugRotatesFile(t *testing.T) {
	r, dir := newTestRecorder(t)
	ctx := context.Background()

	r.OnSnapshot(ctx, snap("w1"))
	r.OnRollover(ctx, domain.Round{Slug: "w1", ClosedAt: time.Now()})
	r.OnSnapshot(ctx, snap("w2"))
	r.Close()

	if lines := readLines(t, filepath.Join(dir, "w1.jsonl")); len(lines) != 2 {
		t.Errorf("w1 lines = %d, want 2", len(lines))
	}
	if lines := readLines(t, filepath.Join(dir, "w2.jsonl")); len(lines) != 1 {
		t.Errorf("w2 lines = %d, want 1", len(lines))
	}
}

type fakeBlob struct {
	puts       []string
	multiparts []string
}

func (f *fakeBlob) Put(_ context.Context, path string, _ io.Reader, _ string) error {
	f.puts = append(f.puts, path)
	return nil
}

func (f *fakeBlob) PutMultipart(_ context.Context, path string, _ io.Reader, _ int64) error {
	f.multiparts = append(f.multiparts, path)
	return nil
}

func TestArchiveUsesMultipartForLargeRecordings(t *testing.T) {
	dir := t.TempDir()
	blob := &fakeBlob{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(config.RecorderConfig{Enabled: true, Dir: dir, Archive: true}, blob, logger)

	small := filepath.Join(dir, "small.jsonl")
	if err := os.WriteFile(small, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r.archive(context.Background(), small, "small")

	large := filepath.Join(dir, "large.jsonl")
	if err := os.WriteFile(large, make([]byte, multipartThreshold), 0o644); err != nil {
		t.Fatal(err)
	}
	r.archive(context.Background(), large, "large")

	if len(blob.puts) != 1 || blob.puts[0] != "recordings/small.jsonl" {
		t.Errorf("single puts = %v, want the small recording", blob.puts)
	}
	if len(blob.multiparts) != 1 || blob.multiparts[0] != "recordings/large.jsonl" {
		t.Errorf("multipart puts = %v, want the large recording", blob.multiparts)
	}
}

func TestEventsBeforeFirstSnapshotAreSkipped(t *testing.T) {
	r, dir := newTestRecorder(t)
	ctx := context.Background()

	// No slug known yet; nothing to write to.
	r.OnHalt(ctx, "circuit_breaker")
	r.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("wrote %d files before any snapshot", len(entries))
	}
}
