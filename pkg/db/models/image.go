package models

import "github.com/mwantia/snaptag/pkg/db/query"

// Image is an uploaded or captured photograph
type Image = query.Document[ImageData]

// ImageData holds the encoded payload, usually a data URI, and an optional title
type ImageData struct {
	Content string `json:"content"`
	Title   string `json:"title,omitempty"`
}
