// Package seed provides the built-in hotel catalogue and loads record lists
// from YAML or JSON files.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/hotelsearch/pkg/types"
)

//go:embed hotels.yaml
var hotelsYAML []byte

// Hotels returns a fresh copy of the built-in hotel catalogue
func Hotels() ([]types.Record, error) {
	records, err := Parse(hotelsYAML, FormatYAML)
	if err != nil {
		return nil, fmt.Errorf("parse built-in hotels: %w", err)
	}
	return records, nil
}

// Format names a record file encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks a format from a file extension. Anything other than
// .json is treated as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads records from a YAML or JSON file
func Load(path string) ([]types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	records, err := Parse(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Parse decodes a list of records. Embeddings present in the input are
// discarded since ingestion always regenerates them.
func Parse(data []byte, format Format) ([]types.Record, error) {
	var records []types.Record
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: decode json: %v", types.ErrInvalidArgument, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("%w: decode yaml: %v", types.ErrInvalidArgument, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", types.ErrInvalidArgument, format)
	}

	if records == nil {
		records = make([]types.Record, 0)
	}
	for i := range records {
		records[i].Embedding = nil
	}
	return records, nil
}
