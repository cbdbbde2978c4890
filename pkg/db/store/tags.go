package store

import (
	"context"
	"errors"

	"github.com/mwantia/snaptag/pkg/db/engine"
	"github.com/mwantia/snaptag/pkg/db/models"
	"github.com/mwantia/snaptag/pkg/db/query"
	"github.com/mwantia/snaptag/pkg/db/schema"
)

func (d *Database) AddTag(ctx context.Context, imageKey engine.Key, value string) error {
	e, err := d.conn(ctx)
	if err != nil {
		return err
	}

	key, err := query.Put(ctx, e, schema.Tags, models.TagData{ImageKey: imageKey, Value: value})
	if err != nil {
		return err
	}

	d.Log.Debug("Added tag %d '%s' to image %d", key, value, imageKey)
	return nil
}

func (d *Database) GetTags(ctx context.Context) ([]models.Tag, error) {
	e, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	return query.All[models.TagData](ctx, e, schema.Tags)
}

// GetTagsByIndex looks tags up through a declared index of the tags
// collection, e.g. GetTagsByIndex(ctx, schema.IndexImageKey, imageKey).
func (d *Database) GetTagsByIndex(ctx context.Context, index string, value any) ([]models.Tag, error) {
	e, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}

	tags, err := query.ByIndex[models.TagData](ctx, e, schema.Tags, index, value)
	if errors.Is(err, engine.ErrIndexNotFound) {
		d.Log.Error("Lookup through undeclared index '%s' on '%s'", index, schema.Tags)
	}
	return tags, err
}

func (d *Database) RemoveTag(ctx context.Context, key engine.Key) error {
	e, err := d.conn(ctx)
	if err != nil {
		return err
	}

	if err := query.Delete(ctx, e, schema.Tags, key); err != nil {
		return err
	}

	d.Log.Debug("Removed tag %d", key)
	return nil
}
