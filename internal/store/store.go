// Package store persists panels and interview documents.
package store

import (
	"context"
	"errors"

	"github.com/spigell/panel-interview/internal/domain"
)

// ErrNotFound is returned when a panel or interview does not exist.
var ErrNotFound = errors.New("not found")

// Store is the document store used by the panel builder and the interview
// controller.
type Store interface {
	CreatePanel(ctx context.Context, panel *domain.PanelRecord) error
	UpdatePanel(ctx context.Context, panel *domain.PanelRecord) error
	GetPanel(ctx context.Context, id string) (*domain.PanelRecord, error)
	// FindMostSimilar returns the stored panel whose embedding has the highest
	// cosine similarity to embedding, or nil when no panel is stored.
	FindMostSimilar(ctx context.Context, embedding []float64) (*domain.PanelRecord, float64, error)

	// SaveInterview upserts the serialized session document.
	SaveInterview(ctx context.Context, id string, doc []byte) error
	LoadInterview(ctx context.Context, id string) ([]byte, error)

	Close() error
}
