package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
)

// Seed mode re-scrapes a known list of centers: each row of the input CSV
// names a center, the directory source is searched by name, and the best
// token-overlap match is taken.

var pincodeRegex = regexp.MustCompile(`^\d{5,6}$`)

var (
	seedNameColumns     = []string{"Center Name", "partnerName", "centerName", "name"}
	seedAddressColumns  = []string{"Address", "address", "centerAddress"}
	seedLocalityColumns = []string{"locality", "Locality", "city", "City", "town", "Town"}
	seedPincodeColumns  = []string{"pincode", "Pincode", "pin", "PIN"}
)

type seedRow struct {
	Name     string
	Address  string
	Locality string
	Pincode  string
}

func readSeedCSV(path string) ([]seedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read seed header: %w", err)
	}

	nameIdx := findColumn(header, seedNameColumns)
	if nameIdx < 0 {
		return nil, errors.New("seed CSV must include a center name column")
	}
	addressIdx := findColumn(header, seedAddressColumns)
	localityIdx := findColumn(header, seedLocalityColumns)
	pincodeIdx := findColumn(header, seedPincodeColumns)

	var rows []seedRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read seed row: %w", err)
		}
		row := seedRow{
			Name:     cell(record, nameIdx),
			Address:  cleanAddressCell(cell(record, addressIdx)),
			Locality: cleanPlaceholderCell(cell(record, localityIdx)),
			Pincode:  cleanPincodeCell(cell(record, pincodeIdx)),
		}
		if row.Name == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func findColumn(header, candidates []string) int {
	for _, want := range candidates {
		for i, col := range header {
			if strings.TrimSpace(col) == want {
				return i
			}
		}
	}
	return -1
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// Spreadsheet exports leave tracking markers in address cells; anything
// that is obviously not an address is dropped.
func cleanAddressCell(v string) string {
	v = cleanPlaceholderCell(v)
	if len(v) < 5 {
		return ""
	}
	return v
}

func cleanPlaceholderCell(v string) string {
	switch strings.ToLower(v) {
	case "yes", "no", "yes in gmb":
		return ""
	}
	return v
}

func cleanPincodeCell(v string) string {
	v = cleanPlaceholderCell(v)
	if !pincodeRegex.MatchString(v) {
		return ""
	}
	return v
}

// runSeed resolves every seed row against the directory source, enriches
// via the maps source when enabled, and writes one merged batch at the
// end. Rows that hit a blocked page or a dead listing land in the
// failed-records CSV.
func (p *pipeline) runSeed(ctx context.Context, rows []seedRow) error {
	m := newMerger()
	var failed [][3]string
	seen := make(map[string]struct{})

	for idx, row := range rows {
		if ctx.Err() != nil {
			break
		}
		if _, dup := seen[strings.ToLower(row.Name)]; dup {
			continue
		}
		seen[strings.ToLower(row.Name)] = struct{}{}

		log.Printf("[%d/%d] looking up %q", idx+1, len(rows), row.Name)

		city := row.Locality
		if city == "" {
			city = p.cfg.SeedCity
		}
		addressHint := normalizeText(strings.Join([]string{row.Address, row.Pincode, row.Locality}, " "))

		rec, reason := p.lookupCenter(ctx, city, row.Name, addressHint)
		if reason != "" {
			failed = append(failed, [3]string{row.Name, row.Address, reason})
			continue
		}
		m.add(rec)

		if p.cfg.UseGMB {
			if enriched, ok := p.enrich(ctx, rec); ok {
				m.add(enriched)
			}
		}
	}

	merged := m.merged()
	if err := p.writer.writeMerged(merged); err != nil {
		return err
	}
	if p.sink != nil {
		if err := storeMerged(ctx, p.sink, p.cfg.SeedCity, merged); err != nil {
			log.Printf("   error storing seed results: %v", err)
		}
	}
	if err := writeFailedRows(p.cfg.OutputDir, failed); err != nil {
		return err
	}

	log.Printf("seed summary: rows=%d, resolved=%d, failed=%d", len(rows), len(merged), len(failed))
	return nil
}

// lookupCenter searches the directory for a known center name and returns
// the best-matching card as a canonical record. A non-empty reason means
// the row could not be resolved at all.
func (p *pipeline) lookupCenter(ctx context.Context, city, name, addressHint string) (canonicalRecord, string) {
	listingURL := justdialListingURL(city, name, 1)
	listing := p.fetch.fetch(ctx, sourceJustdial, listingURL, false)
	if !listing.ok() {
		reason := listing.Reason
		if reason == "" {
			reason = "listing-unavailable"
		}
		return canonicalRecord{}, reason
	}

	cards := parseListingCards(listing)
	if len(cards) == 0 {
		return canonicalRecord{}, "no-results"
	}

	best := cards[0]
	bestScore := -1
	for _, card := range cards {
		score := matchScore(card.Name, name, card.Address, addressHint)
		if score > bestScore {
			bestScore = score
			best = card
		}
	}

	rec, ok := p.processCard(ctx, name, listing, best)
	if !ok {
		return canonicalRecord{}, "unusable-card"
	}
	return rec, ""
}
