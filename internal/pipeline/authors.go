// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// AuthorRanking counts papers per author, optionally only those published
// in the last windowDays days, and attaches curated profiles. Authors are
// sorted by count, then name.
func (o *Orchestrator) AuthorRanking(ctx context.Context, windowDays *int) ([]types.AuthorRank, error) {
	var since *time.Time
	if windowDays != nil && *windowDays > 0 {
		t := types.DateOf(o.now()).AddDate(0, 0, -*windowDays)
		since = &t
	}
	counts, err := o.Store.ListAuthors(ctx, since)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	profiles, err := o.Store.AuthorProfiles(ctx, names)
	if err != nil {
		return nil, err
	}

	ranks := make([]types.AuthorRank, 0, len(names))
	for _, n := range names {
		r := types.AuthorRank{Name: n, PaperCount: counts[n]}
		if prof, ok := profiles[n]; ok {
			r.Profile = &prof
		}
		ranks = append(ranks, r)
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].PaperCount != ranks[j].PaperCount {
			return ranks[i].PaperCount > ranks[j].PaperCount
		}
		return ranks[i].Name < ranks[j].Name
	})
	return ranks, nil
}
