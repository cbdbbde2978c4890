package query

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/mwantia/snaptag/internal/config"
	"github.com/mwantia/snaptag/pkg/db/engine"
	"github.com/mwantia/snaptag/pkg/db/schema"
	"github.com/mwantia/snaptag/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ImageKey engine.Key `json:"imageKey"`
	Value    string     `json:"value"`
}

func createTestEngine(t *testing.T) *engine.Engine {
	t.Helper()

	logger := log.NewWriterLoggerService("test", config.GetDefault().Log, io.Discard)
	e, err := engine.Open(context.Background(), engine.Config{Path: filepath.Join(t.TempDir(), "test.db")}, schema.Default("test"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestPutAndAll(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	k1, err := Put(ctx, e, schema.Tags, note{ImageKey: 1, Value: "cat"})
	require.NoError(t, err)
	k2, err := Put(ctx, e, schema.Tags, note{ImageKey: 2, Value: "dog"})
	require.NoError(t, err)

	docs, err := All[note](ctx, e, schema.Tags)
	require.NoError(t, err)
	assert.Equal(t, []Document[note]{
		{Key: k1, Data: note{ImageKey: 1, Value: "cat"}},
		{Key: k2, Data: note{ImageKey: 2, Value: "dog"}},
	}, docs)
}

func TestByIndex(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	_, err := Put(ctx, e, schema.Tags, note{ImageKey: 1, Value: "cat"})
	require.NoError(t, err)
	_, err = Put(ctx, e, schema.Tags, note{ImageKey: 2, Value: "dog"})
	require.NoError(t, err)

	docs, err := ByIndex[note](ctx, e, schema.Tags, schema.IndexImageKey, engine.Key(2))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "dog", docs[0].Data.Value)

	_, err = ByIndex[note](ctx, e, schema.Tags, "missing", 1)
	assert.ErrorIs(t, err, engine.ErrIndexNotFound)
}

func TestGetModifyDelete(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	key, err := Put(ctx, e, schema.Tags, note{ImageKey: 1, Value: "cat"})
	require.NoError(t, err)

	found, err := Modify(ctx, e, schema.Tags, key, func(n *note) { n.Value = "kitten" })
	require.NoError(t, err)
	assert.True(t, found)

	doc, err := Get[note](ctx, e, schema.Tags, key)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "kitten", doc.Data.Value)
	assert.Equal(t, engine.Key(1), doc.Data.ImageKey)

	require.NoError(t, Delete(ctx, e, schema.Tags, key))
	require.NoError(t, Delete(ctx, e, schema.Tags, key))

	doc, err = Get[note](ctx, e, schema.Tags, key)
	require.NoError(t, err)
	assert.Nil(t, doc)

	found, err = Modify(ctx, e, schema.Tags, key, func(n *note) { n.Value = "ghost" })
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAwait_CancelledContext(t *testing.T) {
	e := createTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// An abandoned request still commits.
	req := e.Put(schema.Tags, engine.Record{Data: []byte(`{"imageKey":1,"value":"late"}`)})
	_, err := Await(ctx, req)
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	key, err := req.Result()
	require.NoError(t, err)
	assert.NotZero(t, key)

	docs, err := All[note](context.Background(), e, schema.Tags)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestAwait_PropagatesEngineErrors(t *testing.T) {
	e := createTestEngine(t)
	require.NoError(t, e.Close())

	_, err := All[note](context.Background(), e, schema.Images)
	assert.ErrorIs(t, err, engine.ErrStorageUnavailable)
}

func TestModify_DecodeErrorIsNotAborted(t *testing.T) {
	e := createTestEngine(t)
	ctx := context.Background()

	key, err := Put(ctx, e, schema.Tags, note{ImageKey: 1, Value: "cat"})
	require.NoError(t, err)

	type numbered struct {
		Value int `json:"value"`
	}

	_, err = Modify(ctx, e, schema.Tags, key, func(n *numbered) { n.Value++ })
	require.Error(t, err)
	assert.NotErrorIs(t, err, engine.ErrTransactionAborted)

	doc, err := Get[note](ctx, e, schema.Tags, key)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "cat", doc.Data.Value)
}
