package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	csvFileName    = "Lab_Centers_Enriched.csv"
	jsonFileName   = "scraped_centers.json"
	failedLogName  = "failed_urls.log"
	missingLogName = "missing_fields.log"
	failedRowsName = "Failed_Records.csv"
)

// lineLog is an append-only, immediately flushed log file. Entries are
// written once and never rewritten; a crash right after a failure still
// leaves the line on disk.
type lineLog struct {
	mu sync.Mutex
	f  *os.File
}

func openLineLog(path string) (*lineLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &lineLog{f: f}, nil
}

func (l *lineLog) logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s | %s\n", time.Now().Format(time.RFC3339), fmt.Sprintf(format, args...))
	_, _ = l.f.WriteString(line)
	_ = l.f.Sync()
}

func (l *lineLog) close() error { return l.f.Close() }

// resultWriter owns every run artifact: the CSV (header written up front
// so a run always produces one), the optional JSON array, and the two
// audit logs.
type resultWriter struct {
	mu          sync.Mutex
	csvFile     *os.File
	csvOut      *csv.Writer
	jsonEnabled bool
	jsonRows    []map[string]any
	jsonPath    string
	failed      *lineLog
	missing     *lineLog
	rows        int
}

func newResultWriter(dir string, jsonEnabled bool) (*resultWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	csvFile, err := os.Create(filepath.Join(dir, csvFileName))
	if err != nil {
		return nil, fmt.Errorf("create csv: %w", err)
	}
	out := csv.NewWriter(csvFile)
	if err := out.Write(csvColumns); err != nil {
		csvFile.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	out.Flush()

	failed, err := openLineLog(filepath.Join(dir, failedLogName))
	if err != nil {
		csvFile.Close()
		return nil, err
	}
	missing, err := openLineLog(filepath.Join(dir, missingLogName))
	if err != nil {
		csvFile.Close()
		failed.close()
		return nil, err
	}

	return &resultWriter{
		csvFile:     csvFile,
		csvOut:      out,
		jsonEnabled: jsonEnabled,
		jsonRows:    make([]map[string]any, 0),
		jsonPath:    filepath.Join(dir, jsonFileName),
		failed:      failed,
		missing:     missing,
	}, nil
}

// writeMerged appends one CSV row per merged record, columns in the fixed
// order, and flushes so a batch is durable the moment it lands.
func (w *resultWriter) writeMerged(recs []mergedRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, rec := range recs {
		row := make([]string, len(csvColumns))
		for i, col := range csvColumns {
			row[i] = rec.Fields[col].render()
		}
		if err := w.csvOut.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		if w.jsonEnabled {
			w.jsonRows = append(w.jsonRows, jsonRow(rec))
		}
		w.rows++
	}
	w.csvOut.Flush()
	return w.csvOut.Error()
}

func jsonRow(rec mergedRecord) map[string]any {
	row := make(map[string]any, len(csvColumns))
	for _, col := range csvColumns {
		v := rec.Fields[col]
		switch {
		case !v.Known:
			row[col] = nil
		case listFields[col]:
			row[col] = v.List
		default:
			row[col] = v.Text
		}
	}
	return row
}

func (w *resultWriter) logFailure(url, kind string) {
	w.failed.logf("%s | %s", url, kind)
}

func (w *resultWriter) logMissing(recordID, field string) {
	w.missing.logf("%s | missing: %s", recordID, field)
}

func (w *resultWriter) rowCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

func (w *resultWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.csvOut.Flush()
	errCSV := w.csvOut.Error()
	if err := w.csvFile.Close(); errCSV == nil {
		errCSV = err
	}

	if w.jsonEnabled {
		data, err := json.MarshalIndent(w.jsonRows, "", "  ")
		if err == nil {
			err = os.WriteFile(w.jsonPath, data, 0o644)
		}
		if errCSV == nil {
			errCSV = err
		}
	}

	w.failed.close()
	w.missing.close()
	return errCSV
}

// writeFailedRows records seed-mode rows that could not be resolved at all.
func writeFailedRows(dir string, rows [][3]string) error {
	if len(rows) == 0 {
		return nil
	}
	f, err := os.Create(filepath.Join(dir, failedRowsName))
	if err != nil {
		return err
	}
	defer f.Close()

	out := csv.NewWriter(f)
	if err := out.Write([]string{"Center Name", "Address", "Reason"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := out.Write(row[:]); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}
