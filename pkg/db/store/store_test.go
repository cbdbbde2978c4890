package store

import (
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/mwantia/snaptag/internal/config"
	"github.com/mwantia/snaptag/pkg/db/engine"
	"github.com/mwantia/snaptag/pkg/db/models"
	"github.com/mwantia/snaptag/pkg/db/schema"
	"github.com/mwantia/snaptag/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMetadataConfig(path string) config.MetadataConfig {
	cfg := config.GetDefault().Metadata
	cfg.SQLite.Path = path
	return cfg
}

func createTestDatabase(t *testing.T) *Database {
	t.Helper()

	logger := log.NewWriterLoggerService("test", config.GetDefault().Log, io.Discard)
	d := NewDatabase(testMetadataConfig(filepath.Join(t.TempDir(), "data", "snaptag.db")), logger)
	t.Cleanup(func() { d.Close() })
	return d
}

func imageKeys(images []models.Image) []engine.Key {
	keys := make([]engine.Key, 0, len(images))
	for _, img := range images {
		keys = append(keys, img.Key)
	}
	return keys
}

func TestDatabase_OpensLazily(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snaptag.db")
	d := NewDatabase(testMetadataConfig(path), log.NewWriterLoggerService("test", config.GetDefault().Log, io.Discard))
	defer d.Close()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "database must not be created before first use")

	images, err := d.GetImages(context.Background())
	require.NoError(t, err)
	assert.Empty(t, images)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestDatabase_SharesConnection(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	engines := make(chan *engine.Engine, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := d.conn(ctx)
			if assert.NoError(t, err) {
				engines <- e
			}
		}()
	}
	wg.Wait()
	close(engines)

	var first *engine.Engine
	for e := range engines {
		if first == nil {
			first = e
		}
		assert.Same(t, first, e)
	}
}

func TestDatabase_StorageUnavailable(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0644))

	d := NewDatabase(testMetadataConfig(filepath.Join(parent, "snaptag.db")), log.NewWriterLoggerService("test", config.GetDefault().Log, io.Discard))
	defer d.Close()

	err := d.AddImage(context.Background(), "img")
	assert.ErrorIs(t, err, engine.ErrStorageUnavailable)

	_, err = d.GetTags(context.Background())
	assert.ErrorIs(t, err, engine.ErrStorageUnavailable)
}

func TestDatabase_Closed(t *testing.T) {
	d := createTestDatabase(t)
	require.NoError(t, d.Connect(context.Background()))
	require.NoError(t, d.Close())

	_, err := d.GetImages(context.Background())
	assert.ErrorIs(t, err, engine.ErrStorageUnavailable)
	assert.NoError(t, d.Close())
}

func TestAddImage_RoundTrip(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.AddImage(ctx, "data:image/png;base64,AAA"))

	images, err := d.GetImages(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "data:image/png;base64,AAA", images[0].Data.Content)
	assert.Empty(t, images[0].Data.Title)
	assert.NotZero(t, images[0].Key)
}

func TestGetImages_StableOrder(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()

	for _, content := range []string{"img1", "img2", "img3"} {
		require.NoError(t, d.AddImage(ctx, content))
	}

	first, err := d.GetImages(ctx)
	require.NoError(t, err)
	second, err := d.GetImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestUpdateTitle(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.AddImage(ctx, "img1"))
	images, err := d.GetImages(ctx)
	require.NoError(t, err)
	key := images[0].Key

	require.NoError(t, d.UpdateTitle(ctx, key, "Beach"))
	require.NoError(t, d.UpdateTitle(ctx, key, "Sunset"))

	images, err = d.GetImages(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "Sunset", images[0].Data.Title)
	assert.Equal(t, "img1", images[0].Data.Content, "content must survive the title update")
}

func TestUpdateTitle_IsNotUpsert(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.AddImage(ctx, "img1"))
	before, err := d.GetImages(ctx)
	require.NoError(t, err)

	require.NoError(t, d.UpdateTitle(ctx, before[0].Key+42, "X"))

	after, err := d.GetImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRemoveImage_Idempotent(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.AddImage(ctx, "img1"))
	require.NoError(t, d.AddImage(ctx, "img2"))
	images, err := d.GetImages(ctx)
	require.NoError(t, err)

	require.NoError(t, d.RemoveImage(ctx, images[0].Key))
	once, err := d.GetImages(ctx)
	require.NoError(t, err)

	require.NoError(t, d.RemoveImage(ctx, images[0].Key))
	twice, err := d.GetImages(ctx)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, []engine.Key{images[1].Key}, imageKeys(twice))
}

func TestRemoveTag_Idempotent(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.AddTag(ctx, 1, "cat"))
	tags, err := d.GetTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)

	require.NoError(t, d.RemoveTag(ctx, tags[0].Key))
	require.NoError(t, d.RemoveTag(ctx, tags[0].Key))

	tags, err = d.GetTags(ctx)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestRemoveImage_DoesNotCascade(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.AddImage(ctx, "c"))
	images, err := d.GetImages(ctx)
	require.NoError(t, err)
	key := images[0].Key

	require.NoError(t, d.AddTag(ctx, key, "v"))
	require.NoError(t, d.RemoveImage(ctx, key))

	tags, err := d.GetTagsByIndex(ctx, schema.IndexImageKey, key)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, models.TagData{ImageKey: key, Value: "v"}, tags[0].Data)
}

func TestAddTag_DoesNotValidateImage(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.AddTag(ctx, 999, "dangling"))

	tags, err := d.GetTagsByIndex(ctx, schema.IndexImageKey, engine.Key(999))
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestGetTagsByIndex_UndeclaredIndex(t *testing.T) {
	d := createTestDatabase(t)

	_, err := d.GetTagsByIndex(context.Background(), "value", "cat")
	assert.ErrorIs(t, err, engine.ErrIndexNotFound)
}

func TestScenario_TwoImagesTwoTags(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.AddImage(ctx, "img1"))
	require.NoError(t, d.AddImage(ctx, "img2"))

	images, err := d.GetImages(ctx)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "img1", images[0].Data.Content)
	assert.Equal(t, "img2", images[1].Data.Content)
	assert.NotEqual(t, images[0].Key, images[1].Key)

	img1, img2 := images[0].Key, images[1].Key
	require.NoError(t, d.AddTag(ctx, img1, "cat"))
	require.NoError(t, d.AddTag(ctx, img2, "dog"))

	tags, err := d.GetTagsByIndex(ctx, schema.IndexImageKey, img1)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, models.TagData{ImageKey: img1, Value: "cat"}, tags[0].Data)

	all, err := d.GetTags(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// Every index lookup must match a filter over the full collection after any
// sequence of tag additions and removals.
func TestGetTagsByIndex_ConsistentWithCollection(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	owners := []engine.Key{1, 2, 3, 4}

	for step := 0; step < 120; step++ {
		tags, err := d.GetTags(ctx)
		require.NoError(t, err)

		if len(tags) > 0 && rng.Intn(3) == 0 {
			require.NoError(t, d.RemoveTag(ctx, tags[rng.Intn(len(tags))].Key))
		} else {
			imageKey := owners[rng.Intn(len(owners))]
			require.NoError(t, d.AddTag(ctx, imageKey, "tag"))
		}

		all, err := d.GetTags(ctx)
		require.NoError(t, err)

		for _, imageKey := range owners {
			var want []engine.Key
			for _, tag := range all {
				if tag.Data.ImageKey == imageKey {
					want = append(want, tag.Key)
				}
			}

			indexed, err := d.GetTagsByIndex(ctx, schema.IndexImageKey, imageKey)
			require.NoError(t, err)

			var got []engine.Key
			for _, tag := range indexed {
				assert.Equal(t, imageKey, tag.Data.ImageKey)
				got = append(got, tag.Key)
			}

			sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
			assert.Equal(t, want, got, "step %d, image %d", step, imageKey)
		}
	}
}

func TestStatus(t *testing.T) {
	d := createTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, d.AddImage(ctx, "img1"))
	require.NoError(t, d.AddTag(ctx, 1, "cat"))
	require.NoError(t, d.AddTag(ctx, 1, "sun"))

	status, err := d.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snaptag", status.Name)
	require.Len(t, status.Versions, 1)
	assert.Equal(t, schema.CurrentVersion, status.Versions[0].Version)
	assert.Equal(t, int64(1), status.Collections[schema.Images])
	assert.Equal(t, int64(2), status.Collections[schema.Tags])
}

func TestDatabase_Lifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testMetadataConfig(filepath.Join(t.TempDir(), "snaptag.db"))

	d := &Database{
		Metadata: &cfg,
		Log:      log.NewWriterLoggerService("test", config.GetDefault().Log, io.Discard),
	}
	require.NoError(t, d.Init(ctx))

	first, err := d.InsertImage(ctx, "img1")
	require.NoError(t, err)
	second, err := d.InsertImage(ctx, "img2")
	require.NoError(t, err)
	assert.Greater(t, second, first)

	require.NoError(t, d.Cleanup(ctx))

	_, err = d.GetImages(ctx)
	assert.ErrorIs(t, err, engine.ErrStorageUnavailable)
}

func TestDatabase_InitRequiresInjection(t *testing.T) {
	ctx := context.Background()
	logger := log.NewWriterLoggerService("test", config.GetDefault().Log, io.Discard)

	assert.Error(t, (&Database{Log: logger}).Init(ctx))

	cfg := testMetadataConfig("")
	assert.Error(t, (&Database{Metadata: &cfg, Log: logger}).Init(ctx))

	cfg = testMetadataConfig("snaptag.db")
	assert.Error(t, (&Database{Metadata: &cfg}).Init(ctx))
}
