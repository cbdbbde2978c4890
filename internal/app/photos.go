package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mwantia/snaptag/pkg/db/engine"
	"github.com/mwantia/snaptag/pkg/db/models"
	"github.com/mwantia/snaptag/pkg/db/schema"
)

var ErrNotAnImage = errors.New("content is not an image")

// EncodeDataURI wraps raw image bytes into a self-describing data URI.
func EncodeDataURI(data []byte) (string, error) {
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", fmt.Errorf("%w: detected '%s'", ErrNotAnImage, mime.String())
	}

	mediaType, _, _ := strings.Cut(mime.String(), ";")
	return fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(data)), nil
}

// MediaType returns the media type of a data URI, or an empty string.
func MediaType(content string) string {
	rest, ok := strings.CutPrefix(content, "data:")
	if !ok {
		return ""
	}
	mediaType, _, _ := strings.Cut(rest, ";")
	mediaType, _, _ = strings.Cut(mediaType, ",")
	return mediaType
}

// Upload stores an image and returns the key assigned to it.
func (app *App) Upload(ctx context.Context, data []byte) (engine.Key, error) {
	content, err := EncodeDataURI(data)
	if err != nil {
		return 0, err
	}
	return app.db.InsertImage(ctx, content)
}

// TagImage adds a tag and returns the refreshed tags of that image.
func (app *App) TagImage(ctx context.Context, imageKey engine.Key, value string) ([]models.Tag, error) {
	if err := app.db.AddTag(ctx, imageKey, value); err != nil {
		return nil, err
	}
	return app.db.GetTagsByIndex(ctx, schema.IndexImageKey, imageKey)
}

// RemoveImageWithTags removes the tags of an image before the image itself
// and returns how many tags were removed.
func (app *App) RemoveImageWithTags(ctx context.Context, key engine.Key) (int, error) {
	tags, err := app.db.GetTagsByIndex(ctx, schema.IndexImageKey, key)
	if err != nil {
		return 0, err
	}

	for _, tag := range tags {
		if err := app.db.RemoveTag(ctx, tag.Key); err != nil {
			return 0, err
		}
	}

	return len(tags), app.db.RemoveImage(ctx, key)
}

// TagsByImage groups all tags by the key of the image they reference.
func (app *App) TagsByImage(ctx context.Context) (map[engine.Key][]models.Tag, error) {
	tags, err := app.db.GetTags(ctx)
	if err != nil {
		return nil, err
	}

	grouped := make(map[engine.Key][]models.Tag)
	for _, tag := range tags {
		grouped[tag.Data.ImageKey] = append(grouped[tag.Data.ImageKey], tag)
	}
	return grouped, nil
}

// FilterImages returns the images carrying at least one tag whose value
// contains filter, ignoring case. An empty filter matches every image.
func (app *App) FilterImages(ctx context.Context, filter string) ([]models.Image, error) {
	images, err := app.db.GetImages(ctx)
	if err != nil || filter == "" {
		return images, err
	}

	grouped, err := app.TagsByImage(ctx)
	if err != nil {
		return nil, err
	}

	filter = strings.ToLower(filter)
	matched := make([]models.Image, 0, len(images))
	for _, img := range images {
		for _, tag := range grouped[img.Key] {
			if strings.Contains(strings.ToLower(tag.Data.Value), filter) {
				matched = append(matched, img)
				break
			}
		}
	}
	return matched, nil
}
