// Package schema declares the collections and secondary indexes of the
// local photo store together with the version used to open it.
package schema

import "fmt"

const (
	Images = "images"
	Tags   = "tags"

	// IndexImageKey is the non-unique index over tags.data.imageKey.
	IndexImageKey = "imageKey"

	// CurrentVersion must be bumped whenever a collection or index is added.
	CurrentVersion = 1
)

// Schema is the static declaration handed to the engine when opening a database.
type Schema struct {
	Name        string
	Version     int
	Collections []Collection
}

// Collection is a named object store whose primary keys are assigned by the engine.
type Collection struct {
	Name          string
	AutoIncrement bool
	Indexes       []Index
}

// Index is a secondary index over a top-level field of the record data.
type Index struct {
	Name    string
	KeyPath string
	Unique  bool
}

// Default returns the images/tags declaration under the given database name.
func Default(name string) Schema {
	return Schema{
		Name:    name,
		Version: CurrentVersion,
		Collections: []Collection{
			{
				Name:          Images,
				AutoIncrement: true,
			},
			{
				Name:          Tags,
				AutoIncrement: true,
				Indexes: []Index{
					{Name: IndexImageKey, KeyPath: "imageKey", Unique: false},
				},
			},
		},
	}
}

// WithVersion returns a copy of s opened under another version.
func (s Schema) WithVersion(version int) Schema {
	s.Version = version
	return s
}

func (s Schema) Collection(name string) (Collection, bool) {
	for _, c := range s.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return Collection{}, false
}

func (c Collection) Index(name string) (Index, bool) {
	for _, idx := range c.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// IndexTable is the name of the SQLite index backing idx on collection c.
func (c Collection) IndexTable(idx Index) string {
	return fmt.Sprintf("idx_%s_%s", c.Name, idx.Name)
}

// Validate rejects declarations the engine could not materialize.
func (s Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name is required")
	}
	if s.Version < 1 {
		return fmt.Errorf("schema version must be positive, got %d", s.Version)
	}
	if len(s.Collections) == 0 {
		return fmt.Errorf("schema '%s' declares no collections", s.Name)
	}

	collections := make(map[string]bool)
	for _, c := range s.Collections {
		if !isIdentifier(c.Name) {
			return fmt.Errorf("invalid collection name '%s'", c.Name)
		}
		if collections[c.Name] {
			return fmt.Errorf("duplicate collection '%s'", c.Name)
		}
		collections[c.Name] = true

		indexes := make(map[string]bool)
		for _, idx := range c.Indexes {
			if !isIdentifier(idx.Name) || !isIdentifier(idx.KeyPath) {
				return fmt.Errorf("invalid index '%s' on collection '%s'", idx.Name, c.Name)
			}
			if indexes[idx.Name] {
				return fmt.Errorf("duplicate index '%s' on collection '%s'", idx.Name, c.Name)
			}
			indexes[idx.Name] = true
		}
	}

	return nil
}

// isIdentifier limits names to characters that are safe to splice into SQL.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Expression is the SQL expression both the index definition and index
// lookups are written against; SQLite only uses an expression index when
// the query repeats it verbatim.
func (idx Index) Expression() string {
	return fmt.Sprintf("json_extract(data, '$.%s')", idx.KeyPath)
}
