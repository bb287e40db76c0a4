// Package importer turns bank CSV exports into transaction rows. A run
// parses and validates every line, drops duplicates of already-imported
// transactions, and commits the remainder in one batch tied to an import job.
package importer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/config"
	"ledger-backend/internal/feature"
	"ledger-backend/internal/features"
	"ledger-backend/internal/store"
)

// Mapping names the CSV headers that feed each transaction field and the
// date layout the file uses. Counterparty is optional.
type Mapping struct {
	Date         string
	Amount       string
	Description  string
	Counterparty string
	DateLayout   string // Go reference layout; defaults to 2006-01-02
	Delimiter    rune   // 0 means detect from the header line
}

// Result summarizes one import run.
type Result struct {
	JobID    string
	Total    int // data rows in the file
	Imported int
	Skipped  int // duplicates, in-file or against existing rows
}

// Importer wires the transaction and import-job services into the pipeline.
type Importer struct {
	st      *store.Store
	txs     *feature.Service
	jobs    *feature.Service
	jobsQ   *feature.Queries
	maxRows int
}

// New builds an importer from the feature registry.
func New(st *store.Store, reg *features.Registry, cfg config.ImportConfig) (*Importer, error) {
	txs, ok := reg.Get("transactions")
	if !ok {
		return nil, fmt.Errorf("importer: transactions feature not registered")
	}
	jobs, ok := reg.Get("import_jobs")
	if !ok {
		return nil, fmt.Errorf("importer: import_jobs feature not registered")
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &Importer{
		st:      st,
		txs:     txs.Service,
		jobs:    jobs.Service,
		jobsQ:   jobs.Queries,
		maxRows: maxRows,
	}, nil
}

// Run executes the pipeline for one file. Any row failing validation aborts
// the whole import; the job is then marked failed and nothing is written.
func (im *Importer) Run(ctx context.Context, data []byte, accountID, filename string, mapping Mapping, userID string) (*Result, error) {
	job, err := im.jobs.Create(ctx, map[string]any{
		"account_id": accountID,
		"filename":   filename,
	}, userID)
	if err != nil {
		return nil, err
	}
	jobID := fmt.Sprint(job["id"])

	result, runErr := im.run(ctx, data, accountID, jobID, mapping, userID)
	if runErr != nil {
		im.finishJob(ctx, jobID, userID, map[string]any{
			"status": "failed",
			"error":  runErr.Error(),
		})
		return nil, runErr
	}

	im.finishJob(ctx, jobID, userID, map[string]any{
		"status":         "completed",
		"row_count":      int64(result.Total),
		"imported_count": int64(result.Imported),
	})
	result.JobID = jobID
	return result, nil
}

func (im *Importer) run(ctx context.Context, data []byte, accountID, jobID string, mapping Mapping, userID string) (*Result, error) {
	rows, err := parseCSV(data, mapping)
	if err != nil {
		return nil, err
	}
	if len(rows) > im.maxRows {
		return nil, apperr.Validation([]apperr.Detail{{
			Field:   "file",
			Rule:    "max",
			Message: fmt.Sprintf("File has %d rows, limit is %d", len(rows), im.maxRows),
		}})
	}

	var details []apperr.Detail
	records := make([]map[string]any, 0, len(rows))
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		record, rowDetails := buildRecord(row, accountID, jobID, mapping)
		if len(rowDetails) > 0 {
			details = append(details, rowDetails...)
			continue
		}
		records = append(records, record)
		keys = append(keys, contentKey(accountID,
			record["date"].(string), record["amount"].(string), record["description"].(string)))
	}
	if len(details) > 0 {
		return nil, apperr.Validation(details)
	}

	existing, err := im.existingKeys(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	fresh := make([]map[string]any, 0, len(records))
	skipped := 0
	for i, record := range records {
		key := keys[i]
		if existing[key] || seen[key] {
			skipped++
			continue
		}
		seen[key] = true
		fresh = append(fresh, record)
	}

	imported := 0
	if len(fresh) > 0 {
		created, err := im.txs.CreateMany(ctx, fresh, userID)
		if err != nil {
			return nil, err
		}
		imported = len(created)
	}

	return &Result{Total: len(rows), Imported: imported, Skipped: skipped}, nil
}

// existingKeys loads the content keys of the account's live transactions.
func (im *Importer) existingKeys(ctx context.Context, accountID, userID string) (map[string]bool, error) {
	pb := im.st.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"SELECT date, amount, description FROM transactions WHERE user_id = %s AND account_id = %s AND is_active = %s",
		pb.Add(userID), pb.Add(accountID), pb.Add(true))
	rows, err := store.QueryRows(ctx, im.st.DB, sqlStr, pb.Params()...)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]bool, len(rows))
	for _, row := range rows {
		amount := fmt.Sprint(row["amount"])
		if d, err := decimal.NewFromString(amount); err == nil {
			amount = d.String()
		}
		keys[contentKey(accountID, dateString(row["date"]), amount, fmt.Sprint(row["description"]))] = true
	}
	return keys, nil
}

// finishJob writes the job outcome through the query layer; the service does
// not expose updateById, so clients cannot rewrite import stats.
func (im *Importer) finishJob(ctx context.Context, jobID, userID string, patch map[string]any) {
	// best effort: the import outcome has already been decided
	_, _ = im.jobsQ.UpdateByID(ctx, map[string]any{"id": jobID}, patch, userID)
}
