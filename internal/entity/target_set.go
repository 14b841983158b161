package entity

import "github.com/user/serp-tracker/pkg/utils"

// TargetSet is the de-duplicated set of domains behind a caller's website list.
// Several originals may share one domain; originals without an extractable host are kept
// aside so they can be reported as not found.
type TargetSet struct {
	originals   []string
	domains     []string
	byDomain    map[string][]string
	unparseable []string
}

// NewTargetSet normalizes websites. Original order is preserved and exact duplicate strings collapse.
func NewTargetSet(websites []string) *TargetSet {
	ts := &TargetSet{byDomain: make(map[string][]string)}
	seen := make(map[string]struct{}, len(websites))
	for _, w := range websites {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		ts.originals = append(ts.originals, w)

		d := utils.ExtractDomain(w)
		if d == "" {
			ts.unparseable = append(ts.unparseable, w)
			continue
		}
		if _, ok := ts.byDomain[d]; !ok {
			ts.domains = append(ts.domains, d)
		}
		ts.byDomain[d] = append(ts.byDomain[d], w)
	}
	return ts
}

// Originals returns every unique original website string, in input order.
func (ts *TargetSet) Originals() []string { return append([]string(nil), ts.originals...) }

// Domains returns the unique matchable domains, in first-seen order.
func (ts *TargetSet) Domains() []string { return append([]string(nil), ts.domains...) }

// OriginalsFor returns the original strings that normalize to domain.
func (ts *TargetSet) OriginalsFor(domain string) []string { return ts.byDomain[domain] }

// Unparseable returns originals with no extractable host.
func (ts *TargetSet) Unparseable() []string { return append([]string(nil), ts.unparseable...) }

// Len is the number of unique originals.
func (ts *TargetSet) Len() int { return len(ts.originals) }

// Empty reports whether nothing is left to resolve.
func (ts *TargetSet) Empty() bool { return len(ts.originals) == 0 }
