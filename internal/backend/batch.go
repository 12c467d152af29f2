package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jwalitptl/schoolhealth/internal/model"
	"github.com/jwalitptl/schoolhealth/internal/repository"
)

var _ repository.BatchBackend = (*Client)(nil)

func batchRoot(kind model.BatchKind) (string, error) {
	switch kind {
	case model.BatchVaccination:
		return "/vaccination-batches", nil
	case model.BatchHealthCheck:
		return "/health-check-batches", nil
	}
	return "", fmt.Errorf("unknown batch kind %q", kind)
}

func (c *Client) ListBatches(ctx context.Context, actor model.ActorContext, kind model.BatchKind) ([]model.Batch, error) {
	root, err := batchRoot(kind)
	if err != nil {
		return nil, err
	}
	var out []model.Batch
	if err := c.doJSON(ctx, actor, "list_batches", http.MethodGet, root, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateBatchStatus(ctx context.Context, actor model.ActorContext, kind model.BatchKind, batchID string, payload model.BatchStatusPayload) error {
	root, err := batchRoot(kind)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, actor, "update_batch", http.MethodPut, root+"/"+escape(batchID)+"/status", payload, nil)
}
