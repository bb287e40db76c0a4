package importer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-backend/internal/apperr"
)

// csvRow is one data line keyed by header name. Line numbers are 1-based and
// count the header, matching what a user sees in a spreadsheet.
type csvRow struct {
	line   int
	values map[string]string
}

// parseCSV reads the whole file into header-keyed rows. The delimiter is
// taken from the mapping or detected from the header line.
func parseCSV(data []byte, mapping Mapping) ([]csvRow, error) {
	delim := mapping.Delimiter
	if delim == 0 {
		delim = detectDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delim
	reader.TrimLeadingSpace = true

	all, err := reader.ReadAll()
	if err != nil {
		return nil, apperr.Validation([]apperr.Detail{{
			Field:   "file",
			Rule:    "format",
			Message: fmt.Sprintf("Cannot parse CSV: %v", err),
		}})
	}
	if len(all) == 0 {
		return nil, apperr.Validation([]apperr.Detail{{
			Field:   "file",
			Rule:    "required",
			Message: "File is empty",
		}})
	}

	header := all[0]
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{mapping.Date, mapping.Amount, mapping.Description} {
		if required == "" {
			return nil, apperr.Validation([]apperr.Detail{{
				Field:   "mapping",
				Rule:    "required",
				Message: "Mapping must name the date, amount and description columns",
			}})
		}
		if _, ok := index[required]; !ok {
			return nil, apperr.Validation([]apperr.Detail{{
				Field:   "mapping",
				Rule:    "unknown",
				Message: fmt.Sprintf("Column %q not found in file header", required),
			}})
		}
	}

	rows := make([]csvRow, 0, len(all)-1)
	for i, record := range all[1:] {
		values := make(map[string]string, len(index))
		for name, col := range index {
			if col < len(record) {
				values[name] = strings.TrimSpace(record[col])
			}
		}
		rows = append(rows, csvRow{line: i + 2, values: values})
	}
	return rows, nil
}

// detectDelimiter picks the separator that splits the first line into the
// most fields.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, cand := range []byte{';', '\t'} {
		if n := bytes.Count(line, []byte{cand}); n > bestCount {
			best, bestCount = rune(cand), n
		}
	}
	return best
}

// buildRecord converts one CSV row into a transaction create payload.
func buildRecord(row csvRow, accountID, jobID string, mapping Mapping) (map[string]any, []apperr.Detail) {
	var details []apperr.Detail
	field := func(name string) string { return fmt.Sprintf("line %d: %s", row.line, name) }

	layout := mapping.DateLayout
	if layout == "" {
		layout = "2006-01-02"
	}
	var date string
	if t, err := time.Parse(layout, row.values[mapping.Date]); err != nil {
		details = append(details, apperr.Detail{
			Field:   field("date"),
			Rule:    "type",
			Message: fmt.Sprintf("Cannot parse %q as a date", row.values[mapping.Date]),
		})
	} else {
		date = t.Format("2006-01-02")
	}

	amount, err := parseAmount(row.values[mapping.Amount])
	if err != nil {
		details = append(details, apperr.Detail{
			Field:   field("amount"),
			Rule:    "type",
			Message: fmt.Sprintf("Cannot parse %q as an amount", row.values[mapping.Amount]),
		})
	}

	description := normalizeDescription(row.values[mapping.Description])
	if description == "" {
		details = append(details, apperr.Detail{
			Field:   field("description"),
			Rule:    "required",
			Message: "Description is empty",
		})
	}

	if len(details) > 0 {
		return nil, details
	}

	record := map[string]any{
		"account_id":  accountID,
		"date":        date,
		"amount":      amount,
		"description": description,
		"import_id":   jobID,
	}
	if mapping.Counterparty != "" {
		if v := row.values[mapping.Counterparty]; v != "" {
			record["counterparty"] = v
		}
	}
	return record, nil
}

// parseAmount accepts both 1,234.56 and European 1.234,56 forms and returns
// the canonical decimal string.
func parseAmount(raw string) (string, error) {
	s := strings.ReplaceAll(raw, " ", "")
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimPrefix(s, "$")
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") && strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else if !strings.Contains(s, ".") {
			// 1234,56
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// normalizeDescription collapses whitespace; the result doubles as the
// dedup-key component.
func normalizeDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// contentKey fingerprints a transaction for duplicate detection.
func contentKey(accountID, date, amount, description string) string {
	h := sha256.Sum256([]byte(accountID + "\x00" + date + "\x00" + amount + "\x00" +
		strings.ToLower(normalizeDescription(description))))
	return hex.EncodeToString(h[:])
}

// dateString renders a stored date value back to YYYY-MM-DD.
func dateString(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02")
	case string:
		if len(t) >= 10 {
			return t[:10]
		}
		return t
	}
	return fmt.Sprint(v)
}
