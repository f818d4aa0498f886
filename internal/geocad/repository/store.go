package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"geocad/internal/geocad/models"
)

// ============================================================
// Store
// ============================================================

// Store хранит чертежи с их слоями, блоками и вставками.
// Удаление чертежа удаляет его слои и вставки; удаление слоя или блока
// удаляет ссылающиеся на него вставки. Геттеры возвращают
// models.ErrNotFound для неизвестных id.
type Store interface {
	CreateDrawing(ctx context.Context, d *models.Drawing) error
	GetDrawing(ctx context.Context, id string) (*models.Drawing, error)
	ListDrawings(ctx context.Context, includePrivate bool) ([]*models.Drawing, error)
	UpdateDrawing(ctx context.Context, d *models.Drawing) error
	SetStale(ctx context.Context, id string, stale bool) error
	DeleteDrawing(ctx context.Context, id string) error

	// ReplaceContents удаляет все слои и вставки чертежа и сохраняет
	// переданные, слои первыми.
	ReplaceContents(ctx context.Context, drawingID string, layers []*models.Layer, insertions []*models.Insertion) error

	CreateLayer(ctx context.Context, l *models.Layer) error
	GetLayer(ctx context.Context, id string) (*models.Layer, error)
	ListLayers(ctx context.Context, drawingID string) ([]*models.Layer, error)
	UpdateLayer(ctx context.Context, l *models.Layer) error
	DeleteLayer(ctx context.Context, id string) error

	CreateInsertion(ctx context.Context, i *models.Insertion) error
	GetInsertion(ctx context.Context, id string) (*models.Insertion, error)
	ListInsertions(ctx context.Context, drawingID string) ([]*models.Insertion, error)
	ListInsertionsByBlock(ctx context.Context, blockID string) ([]*models.Insertion, error)
	UpdateInsertion(ctx context.Context, i *models.Insertion) error
	DeleteInsertion(ctx context.Context, id string) error

	Close() error
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
