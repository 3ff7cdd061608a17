package main

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// openSink connects the optional MySQL sink. CSV stays the primary output;
// the table mirrors it for downstream queries.
func openSink(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := ensureCentersTable(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureCentersTable(ctx context.Context, db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS centers (
  id BIGINT AUTO_INCREMENT PRIMARY KEY,
  city VARCHAR(255) NOT NULL,
  name VARCHAR(255) NOT NULL,
  center_type VARCHAR(100) NULL,
  address TEXT NULL,
  report_time VARCHAR(100) NULL,
  collection_charges VARCHAR(100) NULL,
  collection_radius VARCHAR(50) NULL,
  slots TEXT NULL,
  image_urls TEXT NULL,
  profile_link TEXT NULL,
  embed_link TEXT NULL,
  landmark TEXT NULL,
  rating VARCHAR(100) NULL,
  testimonials TEXT NULL,
  photo_gallery TEXT NULL,
  staff TEXT NULL,
  scraped_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
  UNIQUE KEY uniq_city_name (city, name)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`
	_, err := db.ExecContext(ctx, ddl)
	return err
}

func storeMerged(ctx context.Context, db *sql.DB, city string, recs []mergedRecord) error {
	if len(recs) == 0 {
		return nil
	}

	const stmt = `
INSERT INTO centers (city, name, center_type, address, report_time, collection_charges,
  collection_radius, slots, image_urls, profile_link, embed_link, landmark, rating,
  testimonials, photo_gallery, staff, scraped_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  center_type=VALUES(center_type),
  address=VALUES(address),
  report_time=VALUES(report_time),
  collection_charges=VALUES(collection_charges),
  collection_radius=VALUES(collection_radius),
  slots=VALUES(slots),
  image_urls=VALUES(image_urls),
  profile_link=VALUES(profile_link),
  embed_link=VALUES(embed_link),
  landmark=VALUES(landmark),
  rating=VALUES(rating),
  testimonials=VALUES(testimonials),
  photo_gallery=VALUES(photo_gallery),
  staff=VALUES(staff),
  scraped_at=VALUES(scraped_at);`

	prepared, err := db.PrepareContext(ctx, stmt)
	if err != nil {
		return err
	}
	defer prepared.Close()

	now := time.Now()
	for _, rec := range recs {
		name := rec.Fields[fieldCenterName].render()
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, err := prepared.ExecContext(ctx,
			city,
			name,
			nullString(rec.Fields[fieldCenterType].render()),
			nullString(rec.Fields[fieldAddress].render()),
			nullString(rec.Fields[fieldReportTime].render()),
			nullString(rec.Fields[fieldCharges].render()),
			nullString(rec.Fields[fieldRadius].render()),
			nullString(rec.Fields[fieldSlots].render()),
			nullString(rec.Fields[fieldImageURLs].render()),
			nullString(rec.Fields[fieldProfileLink].render()),
			nullString(rec.Fields[fieldMapsEmbed].render()),
			nullString(rec.Fields[fieldLandmark].render()),
			nullString(rec.Fields[fieldReviews].render()),
			nullString(rec.Fields[fieldTestimonials].render()),
			nullString(rec.Fields[fieldPhotoGallery].render()),
			nullString(rec.Fields[fieldStaff].render()),
			now,
		); err != nil {
			return err
		}
	}
	return nil
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
