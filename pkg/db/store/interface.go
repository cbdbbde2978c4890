package store

import (
	"context"

	"github.com/mwantia/snaptag/pkg/db/engine"
	"github.com/mwantia/snaptag/pkg/db/models"
)

// ImageStore defines the operations on the images collection
type ImageStore interface {
	// AddImage stores content as a new untitled image. The assigned key is
	// only observable by reading the collection again.
	AddImage(ctx context.Context, content string) error
	// InsertImage is AddImage returning the key assigned by the insert.
	InsertImage(ctx context.Context, content string) (engine.Key, error)
	GetImages(ctx context.Context) ([]models.Image, error)
	// UpdateTitle is a no-op for unknown keys; it never creates an image.
	UpdateTitle(ctx context.Context, key engine.Key, title string) error
	// RemoveImage leaves the tags of the image in place.
	RemoveImage(ctx context.Context, key engine.Key) error
}

// TagStore defines the operations on the tags collection
type TagStore interface {
	// AddTag does not check that imageKey refers to an existing image.
	AddTag(ctx context.Context, imageKey engine.Key, value string) error
	GetTags(ctx context.Context) ([]models.Tag, error)
	GetTagsByIndex(ctx context.Context, index string, value any) ([]models.Tag, error)
	RemoveTag(ctx context.Context, key engine.Key) error
}

// PhotoStore is the local persistence layer for images and their tags
type PhotoStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Status(ctx context.Context) (*Status, error)

	ImageStore
	TagStore
}
