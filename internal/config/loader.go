package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Metafile is the input of one generation run. Constants are validated on
// load; the record lists are kept raw so that one bad record only fails the
// jobs built from it. Validate checks them all at once.
type Metafile struct {
	Constants Constants
	Packages  []Record
	Templates []Record
	Platforms []Record
	Editors   []Record
}

// rawMetafile is the shape every format decodes into before validation.
type rawMetafile struct {
	Constants Record   `yaml:"constants" json:"constants"`
	Packages  []Record `yaml:"packages" json:"packages"`
	Templates []Record `yaml:"templates" json:"templates"`
	Platforms []Record `yaml:"platforms" json:"platforms"`
	Editors   []Record `yaml:"editors" json:"editors"`
}

// Format of a metafile, picked from the file extension.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatHCL   Format = "hcl"
	FormatJSONC Format = "jsonc"
)

func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml", ".metafile":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	case ".json", ".jsonc":
		return FormatJSONC, nil
	}
	return "", fmt.Errorf("unsupported metafile extension %q", filepath.Ext(path))
}

// LoadMetafile reads and validates the metafile at path.
func LoadMetafile(path string) (*Metafile, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	m, err := ParseMetafile(data, format, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseMetafile decodes data in the given format. filename is only used
// for HCL diagnostics.
func ParseMetafile(data []byte, format Format, filename string) (*Metafile, error) {
	var raw rawMetafile
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	case FormatJSONC:
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return nil, fmt.Errorf("parsing jsonc: %w", err)
		}
	case FormatHCL:
		r, err := decodeHCL(data, filename)
		if err != nil {
			return nil, err
		}
		raw = *r
	default:
		return nil, fmt.Errorf("unknown metafile format %q", format)
	}
	return raw.validate()
}

func (raw *rawMetafile) validate() (*Metafile, error) {
	consts, err := NewConstants(raw.Constants)
	if err != nil {
		return nil, err
	}
	return &Metafile{
		Constants: consts,
		Packages:  raw.Packages,
		Templates: raw.Templates,
		Platforms: raw.Platforms,
		Editors:   raw.Editors,
	}, nil
}

// Validate returns every record error in the metafile joined together, or
// nil when all records are well formed.
func (m *Metafile) Validate() error {
	var errs []error
	for i, r := range m.Packages {
		if _, err := NewPackage(i, r); err != nil {
			errs = append(errs, err)
		}
	}
	for i, r := range m.Templates {
		if _, err := NewTemplate(i, r); err != nil {
			errs = append(errs, err)
		}
	}
	for i, r := range m.Platforms {
		if _, err := NewPlatform(i, r); err != nil {
			errs = append(errs, err)
		}
	}
	for i, r := range m.Editors {
		if _, err := NewEditor(i, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
