package services

import (
	"github.com/google/uuid"
)

// ItemOutcome is the result of one item of a batch operation
type ItemOutcome struct {
	ID      uuid.UUID `json:"id"`
	Success bool      `json:"success"`
	Skipped bool      `json:"skipped,omitempty"`
	Code    string    `json:"code,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// BatchOutcome aggregates per-item results
type BatchOutcome struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Total     int           `json:"total"`
	Items     []ItemOutcome `json:"items"`
}

func (b *BatchOutcome) succeed(id uuid.UUID) {
	b.Succeeded++
	b.Total++
	b.Items = append(b.Items, ItemOutcome{ID: id, Success: true})
}

func (b *BatchOutcome) fail(id uuid.UUID, err error) {
	b.Failed++
	b.Total++
	b.Items = append(b.Items, ItemOutcome{
		ID:    id,
		Code:  ErrorCode(err),
		Error: PublicMessage(err),
	})
}

func (b *BatchOutcome) skip(id uuid.UUID) {
	b.Skipped++
	b.Total++
	b.Items = append(b.Items, ItemOutcome{ID: id, Skipped: true})
}

// chunk splits ids into slices of at most size elements
func chunk(ids []uuid.UUID, size int) [][]uuid.UUID {
	var out [][]uuid.UUID
	for size < len(ids) {
		ids, out = ids[size:], append(out, ids[:size:size])
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
