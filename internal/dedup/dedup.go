// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup separates newly fetched papers from those already stored.
package dedup

import (
	"fmt"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// ExistingFunc returns the subset of ids already present in the store.
type ExistingFunc func(ids []string) (map[string]struct{}, error)

// FilterNew returns the candidates whose ids existing does not report, in
// their original order. When an id appears more than once in candidates
// only the first occurrence is kept. existing is called once with the
// unique candidate ids.
func FilterNew(candidates []types.RawPaper, existing ExistingFunc) ([]types.RawPaper, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(candidates))
	unique := make([]types.RawPaper, 0, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		unique = append(unique, c)
		ids = append(ids, c.ID)
	}

	present, err := existing(ids)
	if err != nil {
		return nil, fmt.Errorf("checking existing papers: %w", err)
	}

	out := make([]types.RawPaper, 0, len(unique))
	for _, c := range unique {
		if _, ok := present[c.ID]; ok {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
