package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// pipeline drives the keyword/city search space end to end: listing fetch,
// per-card detail fetch and extraction, optional maps-profile enrichment,
// batch-local dedup/merge, and a flush per batch so interruption loses at
// most the batch in flight.
type pipeline struct {
	cfg    config
	fetch  *fetchClient
	writer *resultWriter
	sink   *sql.DB
}

type batchStats struct {
	records int
	failed  bool
}

func (p *pipeline) run(ctx context.Context) error {
	type batch struct{ city, keyword string }

	var batches []batch
	for _, city := range p.cfg.Cities {
		for _, keyword := range p.cfg.Keywords {
			batches = append(batches, batch{city: city, keyword: keyword})
		}
	}

	var totalRecords, failedBatches int64

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Workers)
	for idx, b := range batches {
		idx, b := idx, b
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("[%d/%d] scraping %q in %q", idx+1, len(batches), b.keyword, b.city)
			stats, err := p.runBatch(ctx, b.city, b.keyword)
			if err != nil {
				// Losing an output file is not survivable; abort the run.
				return err
			}
			atomic.AddInt64(&totalRecords, int64(stats.records))
			if stats.failed {
				atomic.AddInt64(&failedBatches, 1)
			}
			return nil
		})
	}
	err := g.Wait()

	log.Printf("run summary: batches=%d, failed batches=%d, merged records=%d",
		len(batches), failedBatches, totalRecords)
	return err
}

// runBatch gathers every candidate record for one (city, keyword) pair
// before merging; merge correctness depends on seeing all same-batch
// candidates together.
func (p *pipeline) runBatch(ctx context.Context, city, keyword string) (batchStats, error) {
	m := newMerger()

	for page := 1; page <= p.cfg.MaxPages; page++ {
		listingURL := justdialListingURL(city, keyword, page)
		listing := p.fetch.fetch(ctx, sourceJustdial, listingURL, false)

		if listing.Outcome == outcomePermanent {
			// Already logged by the fetch client. A dead first page kills
			// the batch; a dead later page just ends pagination.
			if page == 1 {
				return batchStats{failed: true}, nil
			}
			break
		}
		if !listing.ok() {
			continue
		}

		cards := parseListingCards(listing)
		if len(cards) == 0 {
			break
		}

		for _, card := range cards {
			if ctx.Err() != nil {
				break
			}
			rec, ok := p.processCard(ctx, keyword, listing, card)
			if !ok {
				continue
			}
			m.add(rec)

			if p.cfg.UseGMB && rec.name() != "" {
				if enriched, ok := p.enrich(ctx, rec); ok {
					m.add(enriched)
				}
			}
		}

		if ctx.Err() != nil {
			break
		}
	}

	merged := m.merged()
	if err := p.writer.writeMerged(merged); err != nil {
		return batchStats{}, fmt.Errorf("write batch %q/%q: %w", city, keyword, err)
	}
	if p.sink != nil {
		if err := storeMerged(ctx, p.sink, city, merged); err != nil {
			log.Printf("   error storing batch %q/%q: %v", city, keyword, err)
		}
	}
	return batchStats{records: len(merged)}, nil
}

// processCard turns one listing card into a canonical record, fetching the
// detail page when the card links one. A dead detail page only costs the
// detail fields; the card's own data still yields a record.
func (p *pipeline) processCard(ctx context.Context, keyword string, listing rawPage, card listingCard) (canonicalRecord, bool) {
	detail := rawPage{Source: sourceJustdial, URL: listing.URL, FetchedAt: listing.FetchedAt}
	if card.ProfileURL != "" {
		fetched := p.fetch.fetch(ctx, sourceJustdial, card.ProfileURL, false)
		if fetched.ok() {
			detail = fetched
		}
	}

	ext := newJustdialExtractor(keyword, card)
	rec := normalizeRecord(ext.extract(detail))
	if rec.name() == "" {
		return canonicalRecord{}, false
	}
	p.reportMissing(rec)
	return rec, true
}

// enrich looks the center up on the maps source keyed by its name and
// address and extracts the profile fields.
func (p *pipeline) enrich(ctx context.Context, rec canonicalRecord) (canonicalRecord, bool) {
	query := normalizeText(rec.name() + " " + rec.address())
	page := p.fetch.fetch(ctx, sourceGMaps, gmapsSearchURL(query), true)
	if !page.ok() {
		return canonicalRecord{}, false
	}

	ext := newGMapsExtractor(query)
	enriched := normalizeRecord(ext.extract(page))

	// The profile states the name and address its own way, or not at all,
	// so a key derived from them would split the group. Pin the
	// enrichment to the record it enriches; the profile's own values
	// still compete field by field.
	enriched.GroupKey = rec.dedupKey()
	enriched.dropMissing(fieldCenterName, fieldAddress)

	p.reportMissing(enriched)
	return enriched, true
}

func (p *pipeline) reportMissing(rec canonicalRecord) {
	id := rec.id()
	for _, field := range rec.Missing {
		p.writer.logMissing(id, field)
	}
}
