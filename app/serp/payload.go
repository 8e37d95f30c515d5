package serp

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Result is the narrow typed projection of one entry in a raw provider
// payload. Downstream consumers (rank resolution, Share of Voice) work off
// this projection instead of re-parsing the opaque blob ad hoc.
type Result struct {
	Position int    `json:"position"`
	Link     string `json:"link"`
	Domain   string `json:"domain"`
	Title    string `json:"title"`
}

// Host returns the canonical host for a result, preferring the explicit
// domain field and falling back to the link.
func (r Result) Host() string {
	if r.Domain != "" {
		return CanonicalHost(r.Domain)
	}
	return CanonicalHost(r.Link)
}

type payload struct {
	OrganicResults []Result `json:"organic_results"`
}

// ParsePayload extracts the ordered organic result list from a raw provider
// response. The blob itself stays schema-on-read; only this projection is
// consumed elsewhere.
func ParsePayload(raw []byte) ([]Result, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}

	return p.OrganicResults, nil
}

// ResolveRank scans results in provider order and returns the position of
// the first result whose canonical host matches the project's domain.
// Returns -1 when the domain is not present in the result set.
func ResolveRank(results []Result, projectDomain string) int {
	target := CanonicalHost(projectDomain)
	if target == "" {
		return -1
	}

	for _, result := range results {
		if result.Host() == target {
			return result.Position
		}
	}

	return -1
}
