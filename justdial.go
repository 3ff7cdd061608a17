package main

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Overridden in tests.
var justdialBaseURL = "https://www.justdial.com"

var (
	chargesRegex    = regexp.MustCompile(`Collection Charges\s*[:\-]?\s*(\S+)`)
	radiusRegex     = regexp.MustCompile(`Collection Radius\s*[:\-]?\s*([0-9.]+)\s*Kms?`)
	reportTimeRegex = regexp.MustCompile(`Report Time\s*[:\-]?\s*(\S+)`)
	tokenSplitRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

func justdialListingURL(city, keyword string, page int) string {
	return fmt.Sprintf("%s/%s/%s/page-%d",
		justdialBaseURL, url.PathEscape(city), url.PathEscape(keyword), page)
}

// listingCard is one business summary on a directory search-results page.
type listingCard struct {
	Name       string
	Address    string
	RatingText string
	ProfileURL string
}

// parseListingCards locates the result cards on a listing page. The site
// ships several layouts; the selector chain tries each known one.
func parseListingCards(page rawPage) []listingCard {
	if !page.ok() || page.Content == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content))
	if err != nil {
		return nil
	}

	var nodes *goquery.Selection
	for _, selector := range []string{"div.resultbox", "div.jcn", "li.cntanr", "div.store-details"} {
		nodes = doc.Find(selector)
		if nodes.Length() > 0 {
			break
		}
	}
	if nodes == nil || nodes.Length() == 0 {
		return nil
	}

	var cards []listingCard
	nodes.Each(func(_ int, sel *goquery.Selection) {
		cards = append(cards, listingCard{
			Name:       firstText(sel, "span.lng_cont_name", "span.jcn", "a.lng_cont_name", "h2"),
			Address:    firstText(sel, "span.cont_fl_addr", "span.mrehover", "div.adrss"),
			RatingText: firstText(sel, "span.green-box", "span.rating"),
			ProfileURL: cardProfileURL(sel),
		})
	})
	return cards
}

func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if node := sel.Find(s).First(); node.Length() > 0 {
			if text := normalizeText(node.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func cardProfileURL(sel *goquery.Selection) string {
	for _, attr := range []string{"data-href", "data-url"} {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if link := sel.Find(`a[href*="justdial.com"]`).First(); link.Length() > 0 {
		if href, ok := link.Attr("href"); ok {
			return strings.TrimSpace(href)
		}
	}
	return ""
}

// justdialExtractor maps one directory card plus its detail page into a
// partial record. One extractor per card; extraction of one field never
// prevents extraction of the rest.
type justdialExtractor struct {
	keyword string
	card    listingCard
}

var _ sourceExtractor = (*justdialExtractor)(nil)

func newJustdialExtractor(keyword string, card listingCard) *justdialExtractor {
	return &justdialExtractor{keyword: keyword, card: card}
}

func (e *justdialExtractor) source() sourceID { return sourceJustdial }

// Fields a directory page is expected to yield. The profile/embed links
// belong to the maps source and are not counted as directory gaps.
var justdialExpected = []string{
	fieldCenterName,
	fieldCenterType,
	fieldAddress,
	fieldReportTime,
	fieldCharges,
	fieldRadius,
	fieldSlots,
	fieldImageURLs,
	fieldLandmark,
	fieldReviews,
	fieldTestimonials,
	fieldPhotoGallery,
	fieldStaff,
}

func (e *justdialExtractor) extract(page rawPage) partialRecord {
	rec := partialRecord{
		Source:    sourceJustdial,
		SourceURL: page.URL,
		FetchedAt: page.FetchedAt,
		Fields:    make(map[string]rawField),
	}
	if rec.SourceURL == "" {
		rec.SourceURL = e.card.ProfileURL
	}

	if e.card.Name != "" {
		rec.Fields[fieldCenterName] = rawField{Text: e.card.Name, Confidence: confSelector}
	}
	if e.card.Address != "" {
		rec.Fields[fieldAddress] = rawField{Text: e.card.Address, Confidence: confSelector}
	}
	if e.card.RatingText != "" {
		rec.Fields[fieldReviews] = rawField{Text: e.card.RatingText, Confidence: confSelector}
	}
	if t := inferCenterType(e.keyword, e.card.Name); t != "" {
		rec.Fields[fieldCenterType] = rawField{Text: t, Confidence: confInferred}
	}

	if page.ok() && page.Content != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content)); err == nil {
			e.extractDetail(doc, &rec)
		}
	}

	for _, col := range justdialExpected {
		if _, ok := rec.Fields[col]; !ok {
			rec.Missing = append(rec.Missing, col)
		}
	}
	return rec
}

func (e *justdialExtractor) extractDetail(doc *goquery.Document, rec *partialRecord) {
	if hours := firstText(doc.Selection, "div.ophrs", "span.timing"); hours != "" {
		rec.Fields[fieldSlots] = rawField{Text: hours, Confidence: confSelector}
	}

	if landmark := findLandmarkText(doc); landmark != "" {
		rec.Fields[fieldLandmark] = rawField{Text: landmark, Confidence: confInferred}
	}

	if testimonials := collectTexts(doc, "div.testi", "div.testimonial"); len(testimonials) > 0 {
		rec.Fields[fieldTestimonials] = rawField{List: testimonials, Confidence: confSelector}
	}

	if staff := collectTexts(doc, "div.doctor", "li.doctor", "div.staff"); len(staff) > 0 {
		rec.Fields[fieldStaff] = rawField{List: staff, Confidence: confSelector}
	}

	if images := collectImageURLs(doc); len(images) > 0 {
		rec.Fields[fieldImageURLs] = rawField{List: images, Confidence: confSelector}
		rec.Fields[fieldPhotoGallery] = rawField{List: images, Confidence: confSelector}
	}

	pageText := normalizeText(doc.Text())
	if m := chargesRegex.FindStringSubmatch(pageText); m != nil {
		rec.Fields[fieldCharges] = rawField{Text: m[1], Confidence: confInferred}
	}
	if m := radiusRegex.FindStringSubmatch(pageText); m != nil {
		rec.Fields[fieldRadius] = rawField{Text: m[1], Confidence: confInferred}
	}
	if m := reportTimeRegex.FindStringSubmatch(pageText); m != nil {
		rec.Fields[fieldReportTime] = rawField{Text: m[1], Confidence: confInferred}
	}
}

// findLandmarkText picks the tightest element mentioning a landmark label.
func findLandmarkText(doc *goquery.Document) string {
	landmark := ""
	doc.Find("span, div, p, li").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := normalizeText(sel.Text())
		if text == "" || len(text) > 200 {
			return true
		}
		if strings.Contains(text, "Landmark") {
			landmark = text
			return false
		}
		return true
	})
	return landmark
}

func collectTexts(doc *goquery.Document, selectors ...string) []string {
	for _, selector := range selectors {
		nodes := doc.Find(selector)
		if nodes.Length() == 0 {
			continue
		}
		var out []string
		nodes.Each(func(_ int, sel *goquery.Selection) {
			if text := normalizeText(sel.Text()); text != "" {
				out = append(out, text)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func collectImageURLs(doc *goquery.Document) []string {
	var images []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("data-src")
		if !ok || strings.TrimSpace(src) == "" {
			src, _ = sel.Attr("src")
		}
		src = strings.TrimSpace(src)
		if strings.Contains(src, "http") {
			images = append(images, src)
		}
	})
	return images
}

// inferCenterType classifies the business from the search keyword, falling
// back to the center name.
func inferCenterType(keyword, name string) string {
	for _, candidate := range []string{strings.ToLower(keyword), strings.ToLower(name)} {
		switch {
		case candidate == "":
			continue
		case strings.Contains(candidate, "diagnostic"):
			return "Diagnostic Center"
		case strings.Contains(candidate, "scan"):
			return "Scan Center"
		case strings.Contains(candidate, "lab"):
			return "Lab"
		case strings.Contains(candidate, "hospital"):
			return "Hospital"
		}
	}
	return ""
}

func tokenize(text string) []string {
	var tokens []string
	for _, tok := range tokenSplitRegex.Split(strings.ToLower(text), -1) {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// matchScore ranks a listing card against a target name/address by token
// overlap. Used in seed mode to pick the best candidate for a known
// center.
func matchScore(candidate, target, candidateAddress, targetAddress string) int {
	candidateTokens := tokenSet(candidate)
	targetTokens := tokenSet(target)
	if len(candidateTokens) == 0 || len(targetTokens) == 0 {
		return 0
	}
	score := overlap(candidateTokens, targetTokens)
	if candidateAddress != "" && targetAddress != "" {
		score += overlap(tokenSet(candidateAddress), tokenSet(targetAddress))
	}
	return score
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			n++
		}
	}
	return n
}
