package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quarrydb/quarry/pkg/value"
)

// autoIDBase is where auto-assigned attribute ids start. Low ids are
// left free for stores that reserve them for built-in attributes.
const autoIDBase = 100

type yamlSchema struct {
	Attributes []yamlAttribute `yaml:"attributes"`
}

type yamlAttribute struct {
	ID          int64  `yaml:"id,omitempty"`
	Ident       string `yaml:"ident"`
	Type        string `yaml:"type"`
	Cardinality string `yaml:"cardinality,omitempty"`
	Unique      string `yaml:"unique,omitempty"`
	Indexed     bool   `yaml:"indexed,omitempty"`
	Fulltext    bool   `yaml:"fulltext,omitempty"`
	Component   bool   `yaml:"component,omitempty"`
}

// LoadYAML reads a schema document of the form:
//
//	attributes:
//	  - ident: person/name
//	    type: string
//	    cardinality: one
//	    unique: identity
//	    indexed: true
//
// Cardinality defaults to one, uniqueness to none. Attributes without
// an explicit id are assigned sequential ids starting at 100, in file
// order, skipping any ids the file claims explicitly.
func LoadYAML(r io.Reader) (*Registry, error) {
	var doc yamlSchema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if len(doc.Attributes) == 0 {
		return nil, fmt.Errorf("schema declares no attributes")
	}

	taken := make(map[int64]bool, len(doc.Attributes))
	for _, ya := range doc.Attributes {
		if ya.ID != 0 {
			taken[ya.ID] = true
		}
	}

	nextID := int64(autoIDBase)
	attrs := make([]Attribute, 0, len(doc.Attributes))
	for _, ya := range doc.Attributes {
		a, err := ya.toAttribute()
		if err != nil {
			return nil, err
		}
		if a.ID == 0 {
			for taken[nextID] {
				nextID++
			}
			a.ID = nextID
			taken[nextID] = true
		}
		attrs = append(attrs, a)
	}
	return NewRegistry(attrs...)
}

// LoadFile reads a schema document from a file path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

func (ya yamlAttribute) toAttribute() (Attribute, error) {
	t, err := value.TypeFromString(ya.Type)
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute %q: %w", ya.Ident, err)
	}

	card := One
	switch ya.Cardinality {
	case "", "one":
	case "many":
		card = Many
	default:
		return Attribute{}, fmt.Errorf("attribute %q: unknown cardinality %q", ya.Ident, ya.Cardinality)
	}

	uniq := UniqueNone
	switch ya.Unique {
	case "", "none":
	case "value":
		uniq = UniqueValue
	case "identity":
		uniq = UniqueIdentity
	default:
		return Attribute{}, fmt.Errorf("attribute %q: unknown uniqueness %q", ya.Ident, ya.Unique)
	}

	return Attribute{
		ID:          ya.ID,
		Ident:       ya.Ident,
		Type:        t,
		Cardinality: card,
		Unique:      uniq,
		Indexed:     ya.Indexed,
		Fulltext:    ya.Fulltext,
		Component:   ya.Component,
	}, nil
}
