// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	FormatYAML ExportFormat = "yaml"
	FormatJSON ExportFormat = "json"
)

// ExportEntry is one paper in an export, with its curated author
// profiles attached.
type ExportEntry struct {
	types.Paper `yaml:",inline"`

	Profiles []types.AuthorProfile `json:"author_profiles,omitempty" yaml:"author_profiles,omitempty"`
}

// Export writes the papers matching f to w in the given format. It
// returns the number of papers written.
func (s *Store) Export(ctx context.Context, w io.Writer, f Filter, format ExportFormat) (int, error) {
	entries, err := s.exportEntries(ctx, f)
	if err != nil {
		return 0, err
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return 0, fmt.Errorf("marshaling JSON: %w", err)
		}
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return 0, fmt.Errorf("marshaling YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return 0, fmt.Errorf("marshaling YAML: %w", err)
		}
	default:
		return 0, fmt.Errorf("unknown export format %q", format)
	}
	return len(entries), nil
}

func (s *Store) exportEntries(ctx context.Context, f Filter) ([]ExportEntry, error) {
	papers, err := s.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	profiles, err := s.AuthorProfiles(ctx, nil)
	if err != nil {
		return nil, err
	}

	entries := make([]ExportEntry, len(papers))
	for i, p := range papers {
		entries[i] = ExportEntry{Paper: *p}
		for _, a := range p.Authors {
			if prof, ok := profiles[a]; ok {
				entries[i].Profiles = append(entries[i].Profiles, prof)
			}
		}
	}
	return entries, nil
}
