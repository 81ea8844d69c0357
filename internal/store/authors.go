// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// ListAuthors counts papers per author name. When since is non-nil only
// papers published on or after that date are counted. Counts are always
// computed from the current paper set.
func (s *Store) ListAuthors(ctx context.Context, since *time.Time) (map[string]int, error) {
	q := `SELECT pa.name, COUNT(DISTINCT pa.paper_id)
		FROM paper_authors pa JOIN papers p ON p.id = pa.paper_id`
	var args []any
	if since != nil {
		q += ` WHERE p.published >= ?`
		args = append(args, types.DateOf(*since).Format(types.DateLayout))
	}
	q += ` GROUP BY pa.name`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("counting authors: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scanning author count: %w", err)
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

// UpsertAuthorProfile creates or replaces the curated profile for
// profile.Name.
func (s *Store) UpsertAuthorProfile(ctx context.Context, profile types.AuthorProfile) error {
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		return fmt.Errorf("author profile has no name")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO author_profiles (name, bio, website, affiliation, is_important)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			bio=excluded.bio, website=excluded.website,
			affiliation=excluded.affiliation, is_important=excluded.is_important`,
		name, types.Sanitize(profile.Bio), profile.Website,
		types.Sanitize(profile.Affiliation), profile.IsImportant,
	)
	if err != nil {
		return fmt.Errorf("saving author profile %q: %w", name, err)
	}
	return nil
}

// AuthorProfiles returns the curated profiles for names, keyed by name.
// Names without a profile are absent from the result. A nil names slice
// returns every profile.
func (s *Store) AuthorProfiles(ctx context.Context, names []string) (map[string]types.AuthorProfile, error) {
	out := make(map[string]types.AuthorProfile)
	if names == nil {
		return out, s.scanProfiles(ctx, out, `SELECT name, bio, website, affiliation, is_important FROM author_profiles`)
	}
	for chunk := range chunks(names, existsChunk) {
		args := make([]any, len(chunk))
		for i, n := range chunk {
			args[i] = n
		}
		if err := s.scanProfiles(ctx, out,
			`SELECT name, bio, website, affiliation, is_important FROM author_profiles
			 WHERE name IN (`+placeholders(len(chunk))+`)`, args...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) scanProfiles(ctx context.Context, out map[string]types.AuthorProfile, q string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("reading author profiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p types.AuthorProfile
		if err := rows.Scan(&p.Name, &p.Bio, &p.Website, &p.Affiliation, &p.IsImportant); err != nil {
			return fmt.Errorf("scanning author profile: %w", err)
		}
		out[p.Name] = p
	}
	return rows.Err()
}
