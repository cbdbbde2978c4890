// Package query turns engine requests into plain blocking calls that decode
// records into typed documents.
package query

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mwantia/snaptag/pkg/db/engine"
)

// Document is a typed record: the engine-assigned key and the decoded data.
type Document[D any] struct {
	Key  engine.Key `json:"key"`
	Data D          `json:"data"`
}

// Await suspends the caller until req resolves. If ctx ends first, ctx.Err()
// is returned; the request itself cannot be cancelled and still commits.
func Await[T any](ctx context.Context, req *engine.Request[T]) (T, error) {
	select {
	case <-req.Done():
		return req.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Put stores data as a new record and returns its key.
func Put[D any](ctx context.Context, e *engine.Engine, collection string, data D) (engine.Key, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("failed to encode '%s' record: %w", collection, err)
	}
	return Await(ctx, e.Put(collection, engine.Record{Data: raw}))
}

// Get returns the document under key, or nil if there is none.
func Get[D any](ctx context.Context, e *engine.Engine, collection string, key engine.Key) (*Document[D], error) {
	rec, err := Await(ctx, e.Get(collection, key))
	if err != nil || rec == nil {
		return nil, err
	}

	doc, err := decode[D](*rec)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Modify applies fn to the decoded data under key and writes it back in the
// same transaction. It reports false without writing when key is missing.
func Modify[D any](ctx context.Context, e *engine.Engine, collection string, key engine.Key, fn func(*D)) (bool, error) {
	return Await(ctx, e.Update(collection, key, func(raw json.RawMessage) (json.RawMessage, error) {
		var data D
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to decode '%s' record %d: %w", collection, key, err)
		}
		fn(&data)
		return json.Marshal(data)
	}))
}

// All returns every document of the collection in key order.
func All[D any](ctx context.Context, e *engine.Engine, collection string) ([]Document[D], error) {
	recs, err := Await(ctx, e.GetAll(collection))
	if err != nil {
		return nil, err
	}
	return decodeAll[D](recs)
}

// ByIndex returns the documents whose indexed field equals value. It only
// ever goes through the engine index.
func ByIndex[D any](ctx context.Context, e *engine.Engine, collection, index string, value any) ([]Document[D], error) {
	recs, err := Await(ctx, e.GetByIndex(collection, index, value))
	if err != nil {
		return nil, err
	}
	return decodeAll[D](recs)
}

// Delete removes the record under key; missing keys are not an error.
func Delete(ctx context.Context, e *engine.Engine, collection string, key engine.Key) error {
	_, err := Await(ctx, e.Delete(collection, key))
	return err
}

func decode[D any](rec engine.Record) (Document[D], error) {
	doc := Document[D]{Key: rec.Key}
	if err := json.Unmarshal(rec.Data, &doc.Data); err != nil {
		return Document[D]{}, fmt.Errorf("failed to decode record %d: %w", rec.Key, err)
	}
	return doc, nil
}

func decodeAll[D any](recs []engine.Record) ([]Document[D], error) {
	docs := make([]Document[D], 0, len(recs))
	for _, rec := range recs {
		doc, err := decode[D](rec)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
