// Package config loads schema documents from TOML or YAML files and turns them into ssbo
// schemas, initial buffer values and spatial simulation settings.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/logger"
)

// Format is the encoding of a schema document.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Format: the matching format
//   - error: a config invalid_input error for unknown extensions
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path(path).
		Detail("unknown document extension %q, want .toml, .yaml or .yml", filepath.Ext(path)).
		Build()
}

// FieldDoc declares one field. Type is a primitive spelling (uint, float, vec2, vec3, vec4
// or their WGSL forms) or the name of a struct declared in the same document.
type FieldDoc struct {
	Name      string   `toml:"name" yaml:"name"`
	Type      string   `toml:"type" yaml:"type"`
	Dims      []uint64 `toml:"dims,omitempty" yaml:"dims,omitempty"`
	Unbounded bool     `toml:"unbounded,omitempty" yaml:"unbounded,omitempty"`
}

// TypeDoc declares a struct or a buffer. Initial is only read for buffers and holds the
// starting value of each named field; fields left out start at zero.
type TypeDoc struct {
	Name    string         `toml:"name" yaml:"name"`
	Fields  []FieldDoc     `toml:"fields" yaml:"fields"`
	Initial map[string]any `toml:"initial,omitempty" yaml:"initial,omitempty"`
}

// Document is the decoded form of a schema file.
type Document struct {
	Structs    []TypeDoc   `toml:"structs" yaml:"structs"`
	Buffers    []TypeDoc   `toml:"buffers" yaml:"buffers"`
	Simulation *Simulation `toml:"simulation,omitempty" yaml:"simulation,omitempty"`
}

// Load reads and decodes a schema document, choosing the decoder from the file extension.
//
// Parameters:
//   - path: the document path
//
// Returns:
//   - *Document: the decoded document
//   - error: a config error if the file cannot be read or decoded
func Load(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindNotFound).Path(path).Cause(err).Detail("read document").Build()
	}
	doc, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	logger.Named("config").Debug("document loaded",
		zap.String("path", path),
		zap.Int("structs", len(doc.Structs)),
		zap.Int("buffers", len(doc.Buffers)),
		zap.Bool("simulation", doc.Simulation != nil),
	)
	return doc, nil
}

// Parse decodes a schema document. Unknown keys are rejected.
//
// Parameters:
//   - data: the encoded document
//   - format: the encoding
//
// Returns:
//   - *Document: the decoded document
//   - error: a config invalid_input error on malformed input
func Parse(data []byte, format Format) (*Document, error) {
	doc := &Document{}
	var err error
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(doc)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(doc); err == io.EOF {
			err = nil
		}
	default:
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).Detail("unknown format %q", format).Build()
	}
	if err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(string(format)).
			Cause(err).
			Detail("decode document").
			Build()
	}
	return doc, nil
}
