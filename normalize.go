package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ratingRegex   = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*\(\s*([0-9,]+)`)
	nonDigitRegex = regexp.MustCompile(`\D`)
)

// Phrases that pad opening-hours text without carrying schedule data.
var slotBoilerplate = []string{
	"Open now",
	"Open Now",
	"Closed now",
	"Closed Now",
	"Opens soon",
	"Hours:",
	"⋅",
}

// normalizeText collapses runs of whitespace and trims. Empty in, empty out.
func normalizeText(s string) string {
	return strings.TrimSpace(spaceRegex.ReplaceAllString(s, " "))
}

// uniqueList drops empties and in-record duplicates while keeping order.
func uniqueList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, item := range items {
		item = normalizeText(item)
		if item == "" {
			continue
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// parseRatingReviews understands "4.5 (120)" and "4.5 (120 reviews)"; both
// the score and the count must be present.
func parseRatingReviews(text string) (float64, int, bool) {
	m := ratingRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	rating, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	count, err := strconv.Atoi(nonDigitRegex.ReplaceAllString(m[2], ""))
	if err != nil {
		return 0, 0, false
	}
	return rating, count, true
}

func stripSlotBoilerplate(s string) string {
	for _, phrase := range slotBoilerplate {
		s = strings.ReplaceAll(s, phrase, " ")
	}
	return normalizeText(s)
}

// normalizeRecord maps a partial, source-tagged record into the canonical
// schema. Pure and deterministic: the same input always normalizes
// identically, and the input is never mutated.
func normalizeRecord(p partialRecord) canonicalRecord {
	rec := canonicalRecord{
		Source:    p.Source,
		SourceURL: p.SourceURL,
		FetchedAt: p.FetchedAt,
		Fields:    make(map[string]fieldValue, len(csvColumns)),
	}

	missing := make(map[string]struct{}, len(p.Missing))
	for _, name := range p.Missing {
		missing[name] = struct{}{}
	}

	for _, col := range csvColumns {
		raw, ok := p.Fields[col]
		if !ok {
			rec.Fields[col] = fieldValue{Known: false}
			continue
		}

		v := fieldValue{
			Known:      true,
			Confidence: raw.Confidence,
			Source:     p.Source,
			FetchedAt:  p.FetchedAt,
		}

		switch {
		case listFields[col]:
			v.List = uniqueList(raw.List)
			if len(v.List) == 0 {
				rec.Fields[col] = fieldValue{Known: false}
				missing[col] = struct{}{}
				continue
			}
		case col == fieldReviews:
			rating, count, ok := parseRatingReviews(raw.Text)
			if !ok {
				rec.Fields[col] = fieldValue{Known: false}
				missing[col] = struct{}{}
				continue
			}
			v.Rating = rating
			v.Reviews = count
			v.Text = fmt.Sprintf("%.1f (%d reviews)", rating, count)
		case col == fieldSlots:
			v.Text = stripSlotBoilerplate(raw.Text)
			if v.Text == "" {
				rec.Fields[col] = fieldValue{Known: false}
				missing[col] = struct{}{}
				continue
			}
		default:
			v.Text = normalizeText(raw.Text)
			if v.Text == "" {
				rec.Fields[col] = fieldValue{Known: false}
				missing[col] = struct{}{}
				continue
			}
		}

		rec.Fields[col] = v
	}

	rec.Missing = make([]string, 0, len(missing))
	for _, col := range csvColumns {
		if _, gone := missing[col]; gone {
			rec.Missing = append(rec.Missing, col)
		}
	}
	return rec
}
