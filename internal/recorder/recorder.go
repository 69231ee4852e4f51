// Package recorder writes a per-window JSONL session log: quotes, fills,
// signals, halts, and the closing round. Finished window files are optionally
// archived to object storage at rollover.
package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/arbalest-labs/ticktrader/internal/config"
	"github.com/arbalest-labs/ticktrader/internal/domain"
)

// line is one JSONL entry. Data holds the type-specific payload.
type line struct {
	Type string `json:"type"`
	TS   int64  `json:"ts_ms"`
	Data any    `json:"data"`
}

type quoteData struct {
	MarketID string  `json:"market_id"`
	YesBid   int     `json:"yes_bid"`
	YesAsk   int     `json:"yes_ask"`
	NoBid    int     `json:"no_bid"`
	NoAsk    int     `json:"no_ask"`
	Oracle   float64 `json:"oracle"`
	Strike   float64 `json:"strike"`
	VenueTS  int64   `json:"venue_ts_ms"`
}

type fillData struct {
	OrderID   string  `json:"order_id"`
	Outcome   string  `json:"outcome"`
	Direction string  `json:"direction"`
	Size      float64 `json:"size"`
	Price     int     `json:"price_ticks"`
	Status    string  `json:"status"`
}

type signalData struct {
	ID       string  `json:"id"`
	Outcome  string  `json:"outcome"`
	Price    int     `json:"price_ticks"`
	Size     float64 `json:"size"`
	Priority int     `json:"priority"`
	Reason   string  `json:"reason"`
}

// Recorder is a trader observer that appends to the active window's file.
// Calls arrive on the trader goroutine; buffered appends are cheap enough to
// run inline.
type Recorder struct {
	cfg    config.RecorderConfig
	blob   domain.BlobWriter
	logger *slog.Logger

	slug string
	file *os.File
	buf  *bufio.Writer
}

// New creates a recorder. blob may be nil when archiving is disabled.
func New(cfg config.RecorderConfig, blob domain.BlobWriter, logger *slog.Logger) *Recorder {
	return &Recorder{
		cfg:    cfg,
		blob:   blob,
		logger: logger.With(slog.String("component", "recorder")),
	}
}

// OnSnapshot records the top of book.
func (r *Recorder) OnSnapshot(_ context.Context, ms domain.MarketSnapshot) {
	if err := r.ensureFile(ms.Slug); err != nil {
		return
	}

	data := quoteData{
		MarketID: ms.MarketID,
		Oracle:   ms.OraclePrice,
		Strike:   ms.StrikePrice,
		VenueTS:  ms.ExchangeTimestamp,
	}
	if bid, ok := ms.BestBid(domain.OutcomeYes); ok {
		data.YesBid = int(bid.Price)
	}
	if ask, ok := ms.BestAsk(domain.OutcomeYes); ok {
		data.YesAsk = int(ask.Price)
	}
	if bid, ok := ms.BestBid(domain.OutcomeNo); ok {
		data.NoBid = int(bid.Price)
	}
	if ask, ok := ms.BestAsk(domain.OutcomeNo); ok {
		data.NoAsk = int(ask.Price)
	}
	r.append("quote", data)
}

// OnDelta records the post-delta top of book as a quote line.
func (r *Recorder) OnDelta(ctx context.Context, _ domain.PriceDeltaEvent, ms domain.MarketSnapshot) {
	r.OnSnapshot(ctx, ms)
}

// OnFill records one execution.
func (r *Recorder) OnFill(_ context.Context, ev domain.FillEvent, o domain.Order) {
	r.append("fill", fillData{
		OrderID:   o.ID,
		Outcome:   string(o.Outcome),
		Direction: string(o.Direction),
		Size:      ev.Size,
		Price:     int(ev.Price),
		Status:    string(o.Status),
	})
}

// OnSignal records the strategy's intent, executed or not.
func (r *Recorder) OnSignal(_ context.Context, sig domain.TradeSignal) {
	r.append("signal", signalData{
		ID:       sig.ID,
		Outcome:  string(sig.Outcome),
		Price:    int(sig.Price),
		Size:     sig.Size,
		Priority: sig.Priority,
		Reason:   sig.Reason,
	})
}

// OnHalt records the latch.
func (r *Recorder) OnHalt(_ context.Context, reason string) {
	r.append("halt", map[string]string{"reason": reason})
}

// OnRollover closes the window file with the round summary and hands it to
// the archiver.
func (r *Recorder) OnRollover(ctx context.Context, round domain.Round) {
	r.append("round", round)
	r.closeFile(ctx)
}

// Close flushes and closes the active file. Call on shutdown.
func (r *Recorder) Close() {
	r.closeFile(context.Background())
}

func (r *Recorder) ensureFile(slug string) error {
	if r.file != nil && r.slug == slug {
		return nil
	}
	if r.file != nil {
		// Slug changed without a rollover record; close out the old file.
		r.closeFile(context.Background())
	}
	if slug == "" {
		return fmt.Errorf("recorder: no slug")
	}

	if err := os.MkdirAll(r.cfg.Dir, 0o755); err != nil {
		r.logger.Error("recording dir create failed", slog.String("error", err.Error()))
		return err
	}
	path := filepath.Join(r.cfg.Dir, slug+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		r.logger.Error("recording file open failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return err
	}

	r.slug = slug
	r.file = f
	r.buf = bufio.NewWriter(f)
	r.logger.Info("recording window", slog.String("path", path))
	return nil
}

func (r *Recorder) append(typ string, data any) {
	if r.buf == nil {
		return
	}
	entry := line{Type: typ, TS: time.Now().UnixMilli(), Data: data}
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}
	payload = append(payload, '\n')
	if _, err := r.buf.Write(payload); err != nil {
		r.logger.Error("recording write failed", slog.String("error", err.Error()))
	}
}

func (r *Recorder) closeFile(ctx context.Context) {
	if r.file == nil {
		return
	}
	if err := r.buf.Flush(); err != nil {
		r.logger.Error("recording flush failed", slog.String("error", err.Error()))
	}
	path := r.file.Name()
	if err := r.file.Close(); err != nil {
		r.logger.Error("recording close failed", slog.String("error", err.Error()))
	}
	r.file = nil
	r.buf = nil
	slug := r.slug
	r.slug = ""

	if r.cfg.Archive && r.blob != nil {
		// Upload off the trader goroutine; the file is closed and will
		// not be reopened under this slug.
		go r.archive(ctx, path, slug)
	}
}

// Recordings past the threshold upload in concurrent parts.
const (
	multipartThreshold = 16 << 20
	archivePartSize    = 8 << 20
)

func (r *Recorder) archive(ctx context.Context, path, slug string) {
	f, err := os.Open(path)
	if err != nil {
		r.logger.Error("archive open failed", slog.String("error", err.Error()))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		r.logger.Error("archive stat failed", slog.String("error", err.Error()))
		return
	}

	key := "recordings/" + slug + ".jsonl"
	uploadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 60*time.Second)
	defer cancel()

	if info.Size() >= multipartThreshold {
		err = r.blob.PutMultipart(uploadCtx, key, f, archivePartSize)
	} else {
		err = r.blob.Put(uploadCtx, key, f, "application/x-ndjson")
	}
	if err != nil {
		r.logger.Error("archive upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Info("window recording archived", slog.String("key", key))
}
