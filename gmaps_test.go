package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileFixture = `<html><body>
<h1 class="DUwDvf">ABC Diagnostics</h1>
<div class="F7nice">4.5 (120)</div>
<button data-item-id="address">12 MG Road, Mumbai, Maharashtra 400001</button>
<button data-item-id="oh">Open ⋅ Closes 9 PM</button>
<img decoding="async" src="https://lh3.googleusercontent.com/p/photo1">
<img decoding="async" src="https://lh3.googleusercontent.com/p/photo2">
<img decoding="async" src="https://cdn.other.com/ignored.png">
<span class="wiI7pd">Got my reports in a day.</span>
<span class="wiI7pd">Clean facility.</span>
<span class="wiI7pd">Staff was helpful.</span>
<span class="wiI7pd">A fourth review that is over the cap.</span>
</body></html>`

func TestGMapsExtractProfile(t *testing.T) {
	page := successPage(sourceGMaps, gmapsSearchURL("ABC Diagnostics 12 MG Road Mumbai"), profileFixture)
	page.FinalURL = "https://www.google.com/maps/place/ABC+Diagnostics/@19.1,72.8,17z"

	ext := newGMapsExtractor("ABC Diagnostics 12 MG Road Mumbai")
	partial := ext.extract(page)

	assert.Equal(t, "ABC Diagnostics", partial.Fields[fieldCenterName].Text)
	assert.Equal(t, "4.5 (120)", partial.Fields[fieldReviews].Text)
	assert.Equal(t, "12 MG Road, Mumbai, Maharashtra 400001", partial.Fields[fieldAddress].Text)
	assert.Contains(t, partial.Fields[fieldSlots].Text, "Closes 9 PM")

	assert.Equal(t, page.FinalURL, partial.Fields[fieldProfileLink].Text)
	assert.Equal(t, page.FinalURL+"?output=embed", partial.Fields[fieldMapsEmbed].Text)

	require.Len(t, partial.Fields[fieldImageURLs].List, 2)
	assert.NotContains(t, partial.Fields[fieldImageURLs].List, "https://cdn.other.com/ignored.png")

	assert.Equal(t, []string{
		"Got my reports in a day.",
		"Clean facility.",
		"Staff was helpful.",
	}, partial.Fields[fieldTestimonials].List)
}

func TestGMapsExtractFallsBackToQueryEmbed(t *testing.T) {
	page := successPage(sourceGMaps, gmapsSearchURL("ABC Diagnostics"), "")
	page.Content = ""

	ext := newGMapsExtractor("ABC Diagnostics")
	partial := ext.extract(page)

	assert.Equal(t, buildEmbedLink("ABC Diagnostics"), partial.Fields[fieldMapsEmbed].Text)
	assert.Equal(t, confInferred, partial.Fields[fieldMapsEmbed].Confidence)

	assert.Contains(t, partial.Missing, fieldProfileLink)
	assert.Contains(t, partial.Missing, fieldReviews)
	assert.Contains(t, partial.Missing, fieldCenterName)
}

func TestBuildEmbedLinkFromPlaceURL(t *testing.T) {
	assert.Equal(t,
		"https://www.google.com/maps/place/x?output=embed",
		buildEmbedLinkFromPlaceURL("https://www.google.com/maps/place/x"))
	assert.Equal(t,
		"https://www.google.com/maps/place/x?hl=en&output=embed",
		buildEmbedLinkFromPlaceURL("https://www.google.com/maps/place/x?hl=en"))
	assert.Equal(t,
		"https://www.google.com/maps?q=x&output=embed",
		buildEmbedLinkFromPlaceURL("https://www.google.com/maps?q=x&output=embed"))
	assert.Equal(t, "", buildEmbedLinkFromPlaceURL(""))
}

func TestGMapsSearchURLEscapesQuery(t *testing.T) {
	assert.Equal(t,
		"https://www.google.com/maps/search/ABC+Diagnostics+Mumbai",
		gmapsSearchURL("ABC Diagnostics Mumbai"))
}
