package main

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	gmapsSearchBaseURL = "https://www.google.com/maps/search/"
	gmapsEmbedBaseURL  = "https://www.google.com/maps"
	maxProfileImages   = 10
	maxTestimonials    = 3
)

func gmapsSearchURL(query string) string {
	return gmapsSearchBaseURL + url.QueryEscape(query)
}

func buildEmbedLink(query string) string {
	return gmapsEmbedBaseURL + "?q=" + url.QueryEscape(query) + "&output=embed"
}

// buildEmbedLinkFromPlaceURL turns the profile URL the browser landed on
// into an embeddable one.
func buildEmbedLinkFromPlaceURL(placeURL string) string {
	if placeURL == "" {
		return ""
	}
	if strings.Contains(placeURL, "output=embed") {
		return placeURL
	}
	joiner := "?"
	if strings.Contains(placeURL, "?") {
		joiner = "&"
	}
	return placeURL + joiner + "output=embed"
}

// gmapsExtractor maps a rendered maps-profile page into a partial record.
type gmapsExtractor struct {
	query string
}

var _ sourceExtractor = (*gmapsExtractor)(nil)

func newGMapsExtractor(query string) *gmapsExtractor {
	return &gmapsExtractor{query: query}
}

func (e *gmapsExtractor) source() sourceID { return sourceGMaps }

var gmapsExpected = []string{
	fieldCenterName,
	fieldAddress,
	fieldSlots,
	fieldImageURLs,
	fieldProfileLink,
	fieldMapsEmbed,
	fieldReviews,
	fieldTestimonials,
	fieldPhotoGallery,
}

func (e *gmapsExtractor) extract(page rawPage) partialRecord {
	rec := partialRecord{
		Source:    sourceGMaps,
		SourceURL: page.URL,
		FetchedAt: page.FetchedAt,
		Fields:    make(map[string]rawField),
	}

	if page.FinalURL != "" {
		rec.Fields[fieldProfileLink] = rawField{Text: page.FinalURL, Confidence: confSelector}
		rec.Fields[fieldMapsEmbed] = rawField{Text: buildEmbedLinkFromPlaceURL(page.FinalURL), Confidence: confSelector}
	} else if e.query != "" {
		rec.Fields[fieldMapsEmbed] = rawField{Text: buildEmbedLink(e.query), Confidence: confInferred}
	}

	if page.ok() && page.Content != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content)); err == nil {
			e.extractProfile(doc, &rec)
		}
	}

	for _, col := range gmapsExpected {
		if _, ok := rec.Fields[col]; !ok {
			rec.Missing = append(rec.Missing, col)
		}
	}
	return rec
}

func (e *gmapsExtractor) extractProfile(doc *goquery.Document, rec *partialRecord) {
	if name := firstText(doc.Selection, "h1.DUwDvf", "h1"); name != "" {
		rec.Fields[fieldCenterName] = rawField{Text: name, Confidence: confSelector}
	}

	if rating := firstText(doc.Selection, "div.F7nice"); rating != "" {
		rec.Fields[fieldReviews] = rawField{Text: rating, Confidence: confSelector}
	}

	if address := firstText(doc.Selection,
		`button[data-item-id="address"]`, `div[data-item-id="address"]`); address != "" {
		rec.Fields[fieldAddress] = rawField{Text: address, Confidence: confSelector}
	}

	if hours := firstText(doc.Selection,
		`button[data-item-id="oh"]`, `div[data-item-id="oh"]`); hours != "" {
		rec.Fields[fieldSlots] = rawField{Text: hours, Confidence: confSelector}
	}

	if images := e.profileImages(doc); len(images) > 0 {
		rec.Fields[fieldImageURLs] = rawField{List: images, Confidence: confSelector}
		rec.Fields[fieldPhotoGallery] = rawField{List: images, Confidence: confSelector}
	}

	if reviews := e.reviewSnippets(doc); len(reviews) > 0 {
		rec.Fields[fieldTestimonials] = rawField{List: reviews, Confidence: confSelector}
	}
}

// profileImages keeps only hosted photo assets, capped the way the profile
// gallery is.
func (e *gmapsExtractor) profileImages(doc *goquery.Document) []string {
	var images []string
	doc.Find(`img[decoding="async"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if src != "" && strings.Contains(src, "googleusercontent") {
			images = append(images, src)
		}
		return len(images) < maxProfileImages
	})
	return images
}

func (e *gmapsExtractor) reviewSnippets(doc *goquery.Document) []string {
	var reviews []string
	doc.Find("span.wiI7pd").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if text := normalizeText(sel.Text()); text != "" {
			reviews = append(reviews, text)
		}
		return len(reviews) < maxTestimonials
	})
	return reviews
}
