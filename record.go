package main

import (
	"regexp"
	"strings"
	"time"
)

type sourceID string

const (
	sourceJustdial sourceID = "justdial"
	sourceGMaps    sourceID = "gmaps"
)

// priority ranks sources for merge tie-breaks. Directory listings are the
// schema's primary source, so justdial outranks the maps profile.
func (s sourceID) priority() int {
	switch s {
	case sourceJustdial:
		return 2
	case sourceGMaps:
		return 1
	}
	return 0
}

// Output columns, in the exact order the CSV header must carry them.
const (
	fieldCenterName   = "Center Name"
	fieldCenterType   = "Center Type"
	fieldAddress      = "Address"
	fieldReportTime   = "Average Report Time"
	fieldCharges      = "Collection Charges"
	fieldRadius       = "Collection Radius (Kms)"
	fieldSlots        = "Opening & Closing Slots"
	fieldImageURLs    = "Image URL(s)"
	fieldProfileLink  = "Google Business Profile Link"
	fieldMapsEmbed    = "Google Maps Embed"
	fieldLandmark     = "Local Landmark / Directions"
	fieldReviews      = "Reviews / Ratings"
	fieldTestimonials = "Testimonials"
	fieldPhotoGallery = "Photo Gallery"
	fieldStaff        = "Staff / Doctors List"
)

var csvColumns = []string{
	fieldCenterName,
	fieldCenterType,
	fieldAddress,
	fieldReportTime,
	fieldCharges,
	fieldRadius,
	fieldSlots,
	fieldImageURLs,
	fieldProfileLink,
	fieldMapsEmbed,
	fieldLandmark,
	fieldReviews,
	fieldTestimonials,
	fieldPhotoGallery,
	fieldStaff,
}

// Fields stored as ordered string sequences and only joined at
// serialization time.
var listFields = map[string]bool{
	fieldImageURLs:    true,
	fieldTestimonials: true,
	fieldPhotoGallery: true,
	fieldStaff:        true,
}

// multiValueDelim joins list fields inside a single CSV cell. Splitting a
// cell on the same string recovers the original sequence.
const multiValueDelim = ", "

// Extraction confidence. A direct selector hit is worth more than a
// page-text regex or an inference from the search keyword.
const (
	confInferred = 1
	confSelector = 2
)

// rawField is a field value as the extractor saw it, before normalization.
type rawField struct {
	Text       string
	List       []string
	Confidence int
}

// partialRecord is the untouched output of one source extractor. Fields
// holds only what was actually found; Missing names everything that was
// expected on the page but absent. Never mutated after creation.
type partialRecord struct {
	Source    sourceID
	SourceURL string
	FetchedAt time.Time
	Fields    map[string]rawField
	Missing   []string
}

// sourceExtractor is the per-source extraction capability. Adding a source
// means adding a variant, not touching the orchestrator.
type sourceExtractor interface {
	source() sourceID
	extract(page rawPage) partialRecord
}

// fieldValue is a normalized field with its provenance. Known == false is
// the unknown sentinel; it renders as an empty CSV cell and null in JSON.
type fieldValue struct {
	Known      bool
	Text       string
	List       []string
	Rating     float64
	Reviews    int
	Confidence int
	Source     sourceID
	FetchedAt  time.Time
}

// render gives the serialized scalar form, used for CSV cells and as the
// final deterministic merge tie-break.
func (v fieldValue) render() string {
	if !v.Known {
		return ""
	}
	if v.List != nil {
		return strings.Join(v.List, multiValueDelim)
	}
	return v.Text
}

// canonicalRecord always carries every output column, populated or unknown.
// GroupKey, when set, pins the record to an existing dedup group instead of
// the key derived from its own name and address.
type canonicalRecord struct {
	Source    sourceID
	SourceURL string
	GroupKey  string
	FetchedAt time.Time
	Fields    map[string]fieldValue
	Missing   []string
}

func (r canonicalRecord) name() string {
	return r.Fields[fieldCenterName].Text
}

func (r canonicalRecord) address() string {
	return r.Fields[fieldAddress].Text
}

// id identifies the record in the missing-fields log: the center name when
// known, otherwise the page it came from.
func (r canonicalRecord) id() string {
	if n := r.name(); n != "" {
		return n
	}
	return r.SourceURL
}

var (
	keyPunctRegex = regexp.MustCompile(`[^\p{L}\p{N} ]+`)
	spaceRegex    = regexp.MustCompile(`\s+`)
)

func normalizeKeyPart(s string) string {
	s = strings.ToLower(s)
	s = keyPunctRegex.ReplaceAllString(s, " ")
	s = spaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// dedupKey groups records that denote the same business. Empty when the
// name is unknown; such records cannot be grouped.
func (r canonicalRecord) dedupKey() string {
	if r.GroupKey != "" {
		return r.GroupKey
	}
	name := normalizeKeyPart(r.name())
	if name == "" {
		return ""
	}
	return name + "|" + normalizeKeyPart(r.address())
}

// dropMissing removes the named columns from the missing list, for fields
// another record in the same group is known to supply.
func (r *canonicalRecord) dropMissing(fields ...string) {
	drop := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		drop[f] = struct{}{}
	}
	kept := r.Missing[:0]
	for _, f := range r.Missing {
		if _, gone := drop[f]; !gone {
			kept = append(kept, f)
		}
	}
	r.Missing = kept
}

// mergedRecord is the reconciled output for one dedup group.
type mergedRecord struct {
	Key     string
	Fields  map[string]fieldValue
	Sources []sourceID
}
