package models

import (
	"github.com/mwantia/snaptag/pkg/db/engine"
	"github.com/mwantia/snaptag/pkg/db/query"
)

// Tag is a free-form label attached to an image
type Tag = query.Document[TagData]

// TagData references its image by key only. The image may no longer exist;
// removing an image leaves its tags in place.
type TagData struct {
	ImageKey engine.Key `json:"imageKey"`
	Value    string     `json:"value"`
}
