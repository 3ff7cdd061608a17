package main

import "sort"

// merger groups canonical records by dedup key and reconciles each group
// into one merged record. The per-field winner is picked by a total order
// over (populated, confidence, source priority, fetch recency, rendered
// value), so merge order never affects the result and a populated value is
// never lost to the unknown sentinel.
type merger struct {
	groups map[string][]canonicalRecord
	order  []string
}

func newMerger() *merger {
	return &merger{groups: make(map[string][]canonicalRecord)}
}

// add files rec under its dedup key. Records with no name cannot be
// grouped and are dropped, the way unnamed listing cards are.
func (m *merger) add(rec canonicalRecord) bool {
	key := rec.dedupKey()
	if key == "" {
		return false
	}
	if _, ok := m.groups[key]; !ok {
		m.order = append(m.order, key)
	}
	m.groups[key] = append(m.groups[key], rec)
	return true
}

// merged produces exactly one record per group, in first-seen order.
func (m *merger) merged() []mergedRecord {
	out := make([]mergedRecord, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, mergeGroup(key, m.groups[key]))
	}
	return out
}

func mergeGroup(key string, recs []canonicalRecord) mergedRecord {
	merged := mergedRecord{
		Key:    key,
		Fields: make(map[string]fieldValue, len(csvColumns)),
	}

	for _, col := range csvColumns {
		best := fieldValue{Known: false}
		for _, rec := range recs {
			if cand := rec.Fields[col]; beats(cand, best) {
				best = cand
			}
		}
		merged.Fields[col] = best
	}

	srcs := make(map[sourceID]struct{})
	for _, v := range merged.Fields {
		if v.Known {
			srcs[v.Source] = struct{}{}
		}
	}
	for src := range srcs {
		merged.Sources = append(merged.Sources, src)
	}
	sort.Slice(merged.Sources, func(i, j int) bool {
		return merged.Sources[i].priority() > merged.Sources[j].priority()
	})

	return merged
}

// beats reports whether a should replace b as the field winner. Unknown
// never beats known; beyond that the order is confidence, then source
// priority, then most recent fetch, then the rendered value itself so that
// full ties still resolve deterministically.
func beats(a, b fieldValue) bool {
	if a.Known != b.Known {
		return a.Known
	}
	if !a.Known {
		return false
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if pa, pb := a.Source.priority(), b.Source.priority(); pa != pb {
		return pa > pb
	}
	if !a.FetchedAt.Equal(b.FetchedAt) {
		return a.FetchedAt.After(b.FetchedAt)
	}
	return a.render() < b.render()
}
