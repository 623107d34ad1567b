package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/buttenhook/polymarket-bot/internal/domain"
)

// ArchiveImpl implements domain.Archiver by querying the ledger for resolved
// decisions older than the cutoff, serializing them to JSONL, uploading the
// result to S3, and pruning the archived rows from the primary store.
//
// Pruning happens only after the upload has succeeded and the object is
// visible in the bucket, so a failed or lost upload leaves the ledger
// untouched.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	reader    domain.BlobReader
	ledger    domain.DecisionLedger
	batchSize int
	logger    *slog.Logger
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// NewArchiver creates a new ArchiveImpl. reader may be nil, which skips the
// post-upload visibility check. batchSize bounds how many decisions are
// archived per call; zero means the default of 500.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, ledger domain.DecisionLedger, batchSize int, logger *slog.Logger) *ArchiveImpl {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &ArchiveImpl{
		writer:    writer,
		reader:    reader,
		ledger:    ledger,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveDecisions moves resolved decisions older than before into cold
// storage under archive/decisions/YYYY-MM/ and returns the number of records
// archived.
func (a *ArchiveImpl) ArchiveDecisions(ctx context.Context, before time.Time) (int64, error) {
	decisions, err := a.ledger.ListResolvedBefore(ctx, before, a.batchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive decisions query: %w", err)
	}
	if len(decisions) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(decisions)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive decisions marshal: %w", err)
	}

	path := archivePath("decisions", before, decisions[len(decisions)-1].CreatedAt)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive decisions upload: %w", err)
	}

	if a.reader != nil {
		ok, err := a.reader.Exists(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive decisions verify %s: %w", path, err)
		}
		if !ok {
			return 0, fmt.Errorf("s3blob: archive decisions verify %s: uploaded object not visible", path)
		}
	}

	ids := make([]string, len(decisions))
	for i, d := range decisions {
		ids[i] = d.ID
	}
	pruned, err := a.ledger.DeleteByIDs(ctx, ids)
	if err != nil {
		// The upload succeeded, so the data is safe; the rows are retried on
		// the next archival pass.
		a.logger.Warn("archived decisions not pruned",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return int64(len(decisions)), nil
	}

	a.logger.Info("decisions archived",
		slog.String("path", path),
		slog.Int("count", len(decisions)),
		slog.Int64("pruned", pruned),
	)
	return int64(len(decisions)), nil
}

// RestoreDecisions re-appends one month's archived decisions (month in
// "2006-01" form) to the ledger and returns the number restored. Ledger
// appends are idempotent on the decision ID, so restoring a month whose rows
// partially survive in hot storage is safe.
func (a *ArchiveImpl) RestoreDecisions(ctx context.Context, month string) (int64, error) {
	if a.reader == nil {
		return 0, fmt.Errorf("s3blob: restore decisions: no reader configured")
	}

	prefix := "archive/decisions/" + month + "/"
	infos, err := a.reader.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("s3blob: restore decisions list %s: %w", prefix, err)
	}

	var restored int64
	for _, info := range infos {
		n, err := a.restoreObject(ctx, info.Path)
		restored += n
		if err != nil {
			return restored, err
		}
	}

	a.logger.Info("decisions restored",
		slog.String("month", month),
		slog.Int("objects", len(infos)),
		slog.Int64("count", restored),
	)
	return restored, nil
}

// restoreObject streams one JSONL archive object back into the ledger.
func (a *ArchiveImpl) restoreObject(ctx context.Context, path string) (int64, error) {
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: restore object %s: %w", path, err)
	}
	defer body.Close()

	var restored int64
	dec := json.NewDecoder(body)
	for dec.More() {
		var d domain.TradeDecision
		if err := dec.Decode(&d); err != nil {
			return restored, fmt.Errorf("s3blob: restore object %s: decode: %w", path, err)
		}
		if err := a.ledger.Append(ctx, d); err != nil {
			return restored, fmt.Errorf("s3blob: restore object %s: append %s: %w", path, d.ID, err)
		}
		restored++
	}
	return restored, nil
}

// archivePath builds the S3 key for an archive batch, partitioned by the
// year-month of the cutoff. The newest record's timestamp keeps batches in
// the same month from clobbering each other.
//
//	archive/decisions/2026-08/20260831T120102Z.jsonl
func archivePath(kind string, before, newest time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl",
		kind, before.Format("2006-01"), newest.UTC().Format("20060102T150405Z"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
