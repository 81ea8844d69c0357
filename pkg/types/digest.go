// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Digest is the notification payload: papers grouped by publication date.
type Digest struct {
	// Title heads the message (e.g. "New Paper Added").
	Title string      `json:"title,omitempty" yaml:"title,omitempty"`
	Days  []DigestDay `json:"days" yaml:"days"`
}

// DigestDay holds the entries for one publication date, best score first.
type DigestDay struct {
	Date    string        `json:"date" yaml:"date"`
	Entries []DigestEntry `json:"entries" yaml:"entries"`
}

// DigestEntry is one paper line in a digest.
type DigestEntry struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Score       int    `json:"score" yaml:"score"`
	Affiliation string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`
	PDFURL      string `json:"pdf_url" yaml:"pdf_url"`
	TLDR        string `json:"tldr,omitempty" yaml:"tldr,omitempty"`
}

// PaperIDs returns the ids of every entry in the digest.
func (d Digest) PaperIDs() []string {
	var ids []string
	for _, day := range d.Days {
		for _, e := range day.Entries {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// Len returns the number of entries in the digest.
func (d Digest) Len() int {
	n := 0
	for _, day := range d.Days {
		n += len(day.Entries)
	}
	return n
}
