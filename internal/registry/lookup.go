package registry

import (
	"context"
	"fmt"

	"github.com/sahilm/fuzzy"
)

// nameSource adapts a slice of records to fuzzy.Source over their Name
// field, the way the teacher's global search index adapts SearchEntry.
type nameSource []*Record

func (s nameSource) String(i int) string { return s[i].Name }
func (s nameSource) Len() int            { return len(s) }

// FindByName fuzzy-matches query against every non-ended record's Name and
// returns the best match. This is a CLI/chat convenience only — the engine
// always addresses sessions by ID and never calls this.
func FindByName(ctx context.Context, reg Registry, query string) (*Record, error) {
	records, err := reg.List(ctx)
	if err != nil {
		return nil, err
	}

	var candidates nameSource
	for _, r := range records {
		if r.Status != StatusEnded {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("registry: no active sessions to search")
	}

	matches := fuzzy.FindFrom(query, candidates)
	if len(matches) == 0 {
		return nil, fmt.Errorf("registry: no session matches %q", query)
	}
	return candidates[matches[0].Index], nil
}
