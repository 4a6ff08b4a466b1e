package core

// importer.go writes validated rows to the store in atomic chunks.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ay01sec/labor-admin-sub000/internal/metrics"
	"github.com/ay01sec/labor-admin-sub000/internal/store"
	"github.com/google/uuid"
)

// DefaultChunkSize leaves headroom under store.MaxBatchOps.
const DefaultChunkSize = 400

// Failure reasons recorded in FailedRow.Error.
const (
	reasonStaging   = "データ変換に失敗しました: %v"
	reasonCommit    = "一括書き込みに失敗しました: %v"
	reasonCancelled = "インポートが中断されたため書き込まれませんでした"
)

// Importer commits validated rows chunk by chunk.
type Importer struct {
	Store     store.Store
	ChunkSize int
	NewID     func() string
	Now       Clock
}

// NewImporter returns an Importer with uuid ids and the wall clock.
func NewImporter(st store.Store, chunkSize int) *Importer {
	return &Importer{
		Store:     st,
		ChunkSize: chunkSize,
		NewID:     uuid.NewString,
		Now:       time.Now,
	}
}

type stagedRow struct {
	row      ValidatedRow
	id       string
	isUpdate bool
}

// Run writes rows into collection.
//
// Chunks run sequentially, each committed as one batch. A row whose staging
// fails is recorded in FailedRows without affecting the rest of its chunk.
// A failed commit moves every staged row of the chunk to FailedRows and
// withdraws their ids. onProgress, when set, is called after every chunk
// whatever its outcome. The context is checked between chunks; once it is
// done the remaining rows are reported as failed and Cancelled is set.
//
// Row-level problems never produce an error. Run only fails when it cannot
// start.
func (im *Importer) Run(ctx context.Context, collection string, rows []ValidatedRow, cfg ImportConfig, onProgress ProgressFunc) (*ImportResult, error) {
	if im.Store == nil {
		return nil, errors.New("importer: store is nil")
	}
	size := im.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	if size > store.MaxBatchOps {
		return nil, fmt.Errorf("importer: chunk size %d exceeds batch limit %d", size, store.MaxBatchOps)
	}
	newID, now := im.NewID, im.Now
	if newID == nil {
		newID = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}

	res := &ImportResult{
		CreatedIDs: make([]string, 0),
		UpdatedIDs: make([]string, 0),
		FailedRows: make([]FailedRow, 0),
	}
	total := len(rows)
	report := func(current int) {
		if onProgress != nil {
			onProgress(Progress{Current: current, Total: total})
		}
	}

	if total == 0 {
		report(0)
		return res, nil
	}

	for start := 0; start < total; start += size {
		if ctx.Err() != nil {
			for _, row := range rows[start:] {
				res.FailedRows = append(res.FailedRows, failed(row, reasonCancelled))
			}
			res.Cancelled = true
			// The write phase is over, so the bar still reaches the end.
			report(total)
			break
		}

		end := min(start+size, total)
		im.writeChunk(ctx, collection, rows[start:end], cfg, newID, now(), res)
		report(end)
	}

	sort.SliceStable(res.FailedRows, func(i, j int) bool {
		return res.FailedRows[i].RowNumber < res.FailedRows[j].RowNumber
	})
	metrics.RecordRows(cfg.Key, "created", len(res.CreatedIDs))
	metrics.RecordRows(cfg.Key, "updated", len(res.UpdatedIDs))
	metrics.RecordRows(cfg.Key, "failed", len(res.FailedRows))
	return res, nil
}

func (im *Importer) writeChunk(ctx context.Context, collection string, chunk []ValidatedRow, cfg ImportConfig, newID func() string, ts time.Time, res *ImportResult) {
	batch := im.Store.NewBatch()
	staged := make([]stagedRow, 0, len(chunk))

	for _, row := range chunk {
		s, err := stage(batch, collection, row, cfg, newID, ts)
		if err != nil {
			res.FailedRows = append(res.FailedRows, failed(row, fmt.Sprintf(reasonStaging, err)))
			continue
		}
		staged = append(staged, s)
		if s.isUpdate {
			res.UpdatedIDs = append(res.UpdatedIDs, s.id)
		} else {
			res.CreatedIDs = append(res.CreatedIDs, s.id)
		}
		res.SuccessCount++
	}

	if len(staged) == 0 {
		return
	}

	// A chunk that has started is committed even if ctx is cancelled meanwhile.
	err := batch.Commit(context.WithoutCancel(ctx))
	metrics.RecordChunk(cfg.Key, err)
	if err == nil {
		return
	}

	// Withdraw this chunk's ids. They were appended last, in order.
	var created, updated int
	for _, s := range staged {
		if s.isUpdate {
			updated++
		} else {
			created++
		}
		res.FailedRows = append(res.FailedRows, failed(s.row, fmt.Sprintf(reasonCommit, err)))
	}
	res.CreatedIDs = res.CreatedIDs[:len(res.CreatedIDs)-created]
	res.UpdatedIDs = res.UpdatedIDs[:len(res.UpdatedIDs)-updated]
	res.SuccessCount -= len(staged)
}

func stage(batch store.Batch, collection string, row ValidatedRow, cfg ImportConfig, newID func() string, ts time.Time) (stagedRow, error) {
	record, err := ToRecord(row.OriginalData, cfg.FieldMappings)
	if err != nil {
		return stagedRow{}, err
	}
	record[FieldUpdatedAt] = ts

	if row.IsUpdate {
		if err := batch.Update(collection, row.ExistingID, record); err != nil {
			return stagedRow{}, err
		}
		return stagedRow{row: row, id: row.ExistingID, isUpdate: true}, nil
	}

	id := newID()
	record[FieldCreatedAt] = ts
	if err := batch.Set(collection, id, record); err != nil {
		return stagedRow{}, err
	}
	return stagedRow{row: row, id: id}, nil
}

func failed(row ValidatedRow, reason string) FailedRow {
	return FailedRow{RowNumber: row.RowNumber, Error: reason, Data: row.OriginalData}
}
