// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// AuthorProfile is curated metadata kept per author name. It is stored
// independently of papers and survives paper deletion.
type AuthorProfile struct {
	Name        string `json:"name" yaml:"name"`
	Bio         string `json:"bio,omitempty" yaml:"bio,omitempty"`
	Website     string `json:"website,omitempty" yaml:"website,omitempty"`
	Affiliation string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`
	IsImportant bool   `json:"is_important" yaml:"is_important"`
}

// AuthorRank is one row of the author index: a paper count computed from
// the current paper set plus the curated profile, if any.
type AuthorRank struct {
	Name       string         `json:"name" yaml:"name"`
	PaperCount int            `json:"paper_count" yaml:"paper_count"`
	Profile    *AuthorProfile `json:"profile,omitempty" yaml:"profile,omitempty"`
}
