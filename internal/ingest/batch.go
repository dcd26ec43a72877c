package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/model"
)

// BatchRequest is an ordered list of entries. Items that omit Source or Day
// inherit the batch-level value.
type BatchRequest struct {
	Items  []Request `json:"items" yaml:"items"`
	Source string    `json:"source,omitempty" yaml:"source,omitempty"`
	Day    string    `json:"day,omitempty" yaml:"day,omitempty"`
}

// ItemStatus is the per-item outcome of a batch.
type ItemStatus string

const (
	ItemCreated ItemStatus = "created"
	ItemFailed  ItemStatus = "failed"
)

// ItemError describes a failed batch item.
type ItemError struct {
	Code    model.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

// ItemResult is the outcome of one batch item, in input order.
type ItemResult struct {
	Index  int        `json:"index"`
	Status ItemStatus `json:"status"`
	Result *Result    `json:"result,omitempty"`
	Error  *ItemError `json:"error,omitempty"`
}

// BatchResult summarizes a batch.
type BatchResult struct {
	BatchID   string       `json:"batch_id"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

// IngestBatch ingests items sequentially, each in its own transaction, so a
// failing item never rolls back its siblings. An empty or oversized batch is
// rejected before anything is written.
func (o *Orchestrator) IngestBatch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	if len(req.Items) == 0 {
		return BatchResult{}, model.NewEmptyBatchError()
	}
	if len(req.Items) > o.batchLimit {
		return BatchResult{}, model.NewBatchTooLargeError(o.batchLimit, len(req.Items))
	}
	if _, err := model.ParseSource(req.Source); err != nil {
		return BatchResult{}, err
	}
	if req.Day != "" {
		if _, err := model.ParseDay(req.Day); err != nil {
			return BatchResult{}, err
		}
	}

	batchID := o.ids.Generate()
	out := BatchResult{
		BatchID: batchID,
		Total:   len(req.Items),
		Items:   make([]ItemResult, 0, len(req.Items)),
	}

	for i, item := range req.Items {
		if item.Source == "" {
			item.Source = req.Source
		}
		if item.Day == "" {
			item.Day = req.Day
		}

		res, err := o.ingestItem(ctx, item)
		if err != nil {
			out.Failed++
			out.Items = append(out.Items, ItemResult{Index: i, Status: ItemFailed, Error: itemError(err)})
			continue
		}
		out.Succeeded++
		out.Items = append(out.Items, ItemResult{Index: i, Status: ItemCreated, Result: &res})
	}

	o.log.Info("batch ingested",
		zap.String("batch_id", batchID),
		zap.Int("total", out.Total),
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", out.Failed))
	return out, nil
}

func (o *Orchestrator) ingestItem(ctx context.Context, item Request) (Result, error) {
	v, err := o.validate(item)
	if err != nil {
		return Result{}, err
	}
	return o.ingest(ctx, v, o.ids.Generate())
}

func itemError(err error) *ItemError {
	code := model.CodeOf(err)
	if code == "" {
		code = model.ErrCodePersistence
	}
	return &ItemError{Code: code, Message: err.Error()}
}
