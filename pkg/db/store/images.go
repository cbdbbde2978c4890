package store

import (
	"context"

	"github.com/mwantia/snaptag/pkg/db/engine"
	"github.com/mwantia/snaptag/pkg/db/models"
	"github.com/mwantia/snaptag/pkg/db/query"
	"github.com/mwantia/snaptag/pkg/db/schema"
)

func (d *Database) AddImage(ctx context.Context, content string) error {
	_, err := d.InsertImage(ctx, content)
	return err
}

func (d *Database) InsertImage(ctx context.Context, content string) (engine.Key, error) {
	e, err := d.conn(ctx)
	if err != nil {
		return 0, err
	}

	key, err := query.Put(ctx, e, schema.Images, models.ImageData{Content: content})
	if err != nil {
		return 0, err
	}

	d.Log.Debug("Added image %d (%d bytes)", key, len(content))
	return key, nil
}

func (d *Database) GetImages(ctx context.Context) ([]models.Image, error) {
	e, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	return query.All[models.ImageData](ctx, e, schema.Images)
}

func (d *Database) UpdateTitle(ctx context.Context, key engine.Key, title string) error {
	e, err := d.conn(ctx)
	if err != nil {
		return err
	}

	found, err := query.Modify(ctx, e, schema.Images, key, func(data *models.ImageData) {
		data.Title = title
	})
	if err != nil {
		return err
	}

	if !found {
		d.Log.Debug("Image %d not found, title left unchanged", key)
	}
	return nil
}

func (d *Database) RemoveImage(ctx context.Context, key engine.Key) error {
	e, err := d.conn(ctx)
	if err != nil {
		return err
	}

	if err := query.Delete(ctx, e, schema.Images, key); err != nil {
		return err
	}

	d.Log.Debug("Removed image %d", key)
	return nil
}
