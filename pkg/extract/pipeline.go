package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/civichq/resultwatch/pkg/db"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// DefaultBatchSize caps how many sheets one cycle attempts.
const DefaultBatchSize = 15

// successThreshold is the minimum parse confidence for a success status.
const successThreshold = 30

// maxRawText bounds the recognized text kept per sheet.
const maxRawText = 5000

// Store is the persistence slice the pipeline uses.
type Store interface {
	PendingExtractions(ctx context.Context, limit int) ([]db.PendingUnit, error)
	UpsertExtraction(ctx context.Context, row *db.ExtractionRow) error
}

// Downloader fetches result-sheet bytes, satisfied by *irev.Client.
type Downloader interface {
	DownloadDocument(ctx context.Context, docURL string) ([]byte, error)
}

// Opts configures a Pipeline.
type Opts struct {
	Store      Store
	Downloader Downloader
	Recognizer Recognizer
	BatchSize  int
	Logger     *zap.Logger
	Progress   func(msg string)
	Sleep      func(time.Duration)
}

// Pipeline drains the backlog of unprocessed result sheets in fixed-size
// batches: download, multi-pass recognition, parse, persist. Every attempted
// unit gets exactly one record, so a unit is never retried once it has an
// outcome of any status.
type Pipeline struct {
	store      Store
	downloader Downloader
	recognizer Recognizer
	batchSize  int
	logger     *zap.Logger
	progress   func(string)
	sleep      func(time.Duration)

	mu sync.Mutex
}

// NewPipeline builds a Pipeline.
func NewPipeline(o Opts) *Pipeline {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Progress == nil {
		o.Progress = func(string) {}
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	return &Pipeline{
		store:      o.Store,
		downloader: o.Downloader,
		recognizer: o.Recognizer,
		batchSize:  o.BatchSize,
		logger:     o.Logger,
		progress:   o.Progress,
		sleep:      o.Sleep,
	}
}

// ProcessBatch processes one batch and returns how many sheets were recognized. Only
// one batch runs at a time; concurrent callers queue on the internal lock.
func (p *Pipeline) ProcessBatch(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending, err := p.store.PendingExtractions(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending extractions: %w", err)
	}

	processed := 0
	for _, unit := range pending {
		if unit.DocumentURL == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		p.progress(fmt.Sprintf("OCR: %s/%s/%s", unit.LGAName, unit.WardName, unit.Code))

		row := p.processUnit(ctx, unit)
		if row.Status == db.ExtractionSuccess || row.Status == db.ExtractionLowConfidence {
			processed++
		}
		if err := p.store.UpsertExtraction(ctx, row); err != nil {
			p.logger.Error("extraction record write failed",
				zap.String("unit", unit.ID), zap.Error(err))
		}
		p.sleep(500 * time.Millisecond)
	}
	return processed, nil
}

// processUnit downloads and recognizes one sheet. It always produces a row;
// failures are recorded so the unit is not attempted again.
func (p *Pipeline) processUnit(ctx context.Context, unit db.PendingUnit) *db.ExtractionRow {
	row := &db.ExtractionRow{
		UnitID:      unit.ID,
		UnitCode:    unit.Code,
		UnitName:    unit.Name,
		WardName:    unit.WardName,
		LGAName:     unit.LGAName,
		ElectionID:  unit.ElectionID,
		DocumentURL: unit.DocumentURL,
		ProcessedAt: time.Now().UTC(),
	}

	data, err := p.downloader.DownloadDocument(ctx, unit.DocumentURL)
	if err != nil {
		p.logger.Warn("result sheet download failed",
			zap.String("unit", unit.Code), zap.Error(err))
		row.Status = db.ExtractionFailed
		row.RawText = "Download failed"
		return row
	}

	// Phone photos arrive sideways; honor the EXIF orientation up front.
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		p.logger.Warn("result sheet decode failed",
			zap.String("unit", unit.Code), zap.Error(err))
		row.Status = db.ExtractionError
		row.RawText = truncate(err.Error(), 500)
		return row
	}

	bestText, parsed := p.recognizeBest(src, unit.Code)
	if parsed == nil {
		// Every pass errored out.
		row.Status = db.ExtractionError
		row.RawText = "recognition failed"
		return row
	}

	votes, _ := json.Marshal(parsed.PartyVotes)
	row.RegisteredVoters = uint32(parsed.RegisteredVoters)
	row.AccreditedVoters = uint32(parsed.AccreditedVoters)
	row.TotalValidVotes = uint32(parsed.TotalValidVotes)
	row.TotalRejectedVotes = uint32(parsed.TotalRejectedVotes)
	row.PartyVotesJSON = string(votes)
	row.Confidence = parsed.Confidence
	row.RawText = truncate(bestText, maxRawText)
	if parsed.Confidence >= successThreshold {
		row.Status = db.ExtractionSuccess
	} else {
		row.Status = db.ExtractionLowConfidence
	}

	p.logger.Info("result sheet recognized",
		zap.String("unit", unit.Code),
		zap.Float64("confidence", parsed.Confidence),
		zap.Int("parties", len(parsed.PartyVotes)),
		zap.Int("valid_votes", parsed.TotalValidVotes))
	return row
}

// recognizeBest runs every pass and keeps the highest-confidence parse. A
// tie keeps the earlier pass. A pass that errors is skipped.
func (p *Pipeline) recognizeBest(src image.Image, unitCode string) (string, *ParsedSheet) {
	bestText := ""
	var bestParsed *ParsedSheet

	for _, pass := range Passes() {
		prepare := pass.Prepare
		if prepare == nil {
			prepare = PrepareRaw
		}
		text, err := p.recognizer.Recognize(prepare(src), pass)
		if err != nil {
			p.logger.Warn("recognition pass failed",
				zap.String("unit", unitCode),
				zap.String("pass", pass.Name),
				zap.Error(err))
			continue
		}
		parsed := ParseResultSheet(text)
		if bestParsed == nil || parsed.Confidence > bestParsed.Confidence {
			bestText = text
			bestParsed = &parsed
		}
	}
	return bestText, bestParsed
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
