package importer

import (
	"context"
	"testing"

	"ledger-backend/internal/apperr"
	"ledger-backend/internal/config"
	"ledger-backend/internal/feature"
	"ledger-backend/internal/features"
	"ledger-backend/internal/store"
)

// importerFixture builds the full registry on in-memory SQLite and seeds the
// user, bank and account that imported transactions hang off.
func importerFixture(t *testing.T) (*Importer, *features.Registry, string, string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)

	reg, err := features.Build(ctx, st)
	if err != nil {
		t.Fatalf("build features: %v", err)
	}

	users, _ := reg.Get("users")
	user, err := users.Service.Create(ctx, map[string]any{
		"email":         "importer@example.com",
		"name":          "Importer",
		"password_hash": "x-hash",
	}, "")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	userID := user["id"].(string)

	banks, _ := reg.Get("banks")
	bank, err := banks.Service.Create(ctx, map[string]any{"name": "Test Bank"}, userID)
	if err != nil {
		t.Fatalf("seed bank: %v", err)
	}
	accounts, _ := reg.Get("accounts")
	account, err := accounts.Service.Create(ctx, map[string]any{
		"bank_id":      bank["id"],
		"name":         "Checking",
		"account_type": "checking",
	}, userID)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}

	im, err := New(st, reg, config.ImportConfig{MaxRows: 100})
	if err != nil {
		t.Fatalf("new importer: %v", err)
	}
	return im, reg, userID, account["id"].(string)
}

func TestParseAmountForms(t *testing.T) {
	cases := map[string]string{
		"12.34":     "12.34",
		"-12.34":    "-12.34",
		"1,234.56":  "1234.56",
		"1.234,56":  "1234.56",
		"1234,56":   "1234.56",
		"$99.00":    "99",
		"10":        "10",
		" 1 234,50": "1234.5",
	}
	for raw, want := range cases {
		got, err := parseAmount(raw)
		if err != nil {
			t.Fatalf("parseAmount(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("parseAmount(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := parseAmount("abc"); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
}

func TestDetectDelimiter(t *testing.T) {
	if d := detectDelimiter([]byte("date;amount;description\n")); d != ';' {
		t.Fatalf("expected semicolon, got %q", d)
	}
	if d := detectDelimiter([]byte("date\tamount\tdescription\n")); d != '\t' {
		t.Fatalf("expected tab, got %q", d)
	}
	if d := detectDelimiter([]byte("date,amount,description\n")); d != ',' {
		t.Fatalf("expected comma, got %q", d)
	}
}

func TestContentKeyNormalization(t *testing.T) {
	const account = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
	a := contentKey(account, "2025-01-15", "12.5", "COFFEE   SHOP")
	b := contentKey(account, "2025-01-15", "12.5", "coffee shop")
	if a != b {
		t.Fatalf("content key must ignore case and whitespace")
	}
	c := contentKey(account, "2025-01-16", "12.5", "coffee shop")
	if a == c {
		t.Fatalf("different dates must produce different keys")
	}
}

func TestRunImportsAndDeduplicates(t *testing.T) {
	im, reg, testUser, testAccount := importerFixture(t)
	ctx := context.Background()

	csvData := []byte("date,amount,description\n" +
		"2025-01-15,12.50,Coffee Shop\n" +
		"2025-01-16,-45.00,Grocery Store\n" +
		"2025-01-16,-45.00,Grocery   store\n") // in-file duplicate

	mapping := Mapping{Date: "date", Amount: "amount", Description: "description"}

	result, err := im.Run(ctx, csvData, testAccount, "jan.csv", mapping, testUser)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Total != 3 || result.Imported != 2 || result.Skipped != 1 {
		t.Fatalf("first run: %+v", result)
	}

	// the job is completed and carries the counters
	jobs, _ := reg.Get("import_jobs")
	job, err := jobs.Service.GetByID(ctx, map[string]any{"id": result.JobID}, testUser)
	if err != nil {
		t.Fatalf("fetch job: %v", err)
	}
	if job["status"] != "completed" {
		t.Fatalf("job status = %v", job["status"])
	}
	if fmtInt(job["row_count"]) != 3 || fmtInt(job["imported_count"]) != 2 {
		t.Fatalf("job counters: %v / %v", job["row_count"], job["imported_count"])
	}

	// imported transactions are tagged with the job id
	txs, _ := reg.Get("transactions")
	page, err := txs.Service.GetMany(ctx, feature.GetManyRequest{
		Filters: map[string]any{"import": result.JobID},
	}, testUser)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected 2 imported transactions, got %d", page.Total)
	}

	// a second run of the same file imports nothing
	result, err = im.Run(ctx, csvData, testAccount, "jan.csv", mapping, testUser)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Imported != 0 || result.Skipped != 3 {
		t.Fatalf("second run: %+v", result)
	}
}

func TestRunRejectsBadRowsAtomically(t *testing.T) {
	im, reg, testUser, testAccount := importerFixture(t)
	ctx := context.Background()

	csvData := []byte("date,amount,description\n" +
		"2025-01-15,12.50,Coffee\n" +
		"not-a-date,12.50,Broken\n")
	mapping := Mapping{Date: "date", Amount: "amount", Description: "description"}

	_, err := im.Run(ctx, csvData, testAccount, "bad.csv", mapping, testUser)
	ae, ok := apperr.As(err)
	if !ok || ae.Code != apperr.CodeInvalidInput {
		t.Fatalf("expected validation error, got %v", err)
	}

	// nothing was written
	txs, _ := reg.Get("transactions")
	page, listErr := txs.Service.GetMany(ctx, feature.GetManyRequest{}, testUser)
	if listErr != nil {
		t.Fatalf("list: %v", listErr)
	}
	if page.Total != 0 {
		t.Fatalf("expected no transactions, got %d", page.Total)
	}

	// the job was marked failed
	jobs, _ := reg.Get("import_jobs")
	failed, listErr := jobs.Service.GetMany(ctx, feature.GetManyRequest{
		Filters: map[string]any{"status": "failed"},
	}, testUser)
	if listErr != nil {
		t.Fatalf("list jobs: %v", listErr)
	}
	if failed.Total != 1 {
		t.Fatalf("expected one failed job, got %d", failed.Total)
	}
}

func TestRunSemicolonDelimiterAndEuropeanDates(t *testing.T) {
	im, _, testUser, testAccount := importerFixture(t)
	ctx := context.Background()

	csvData := []byte("Datum;Betrag;Zweck\n" +
		"15.01.2025;1.234,56;Miete Januar\n")
	mapping := Mapping{
		Date:        "Datum",
		Amount:      "Betrag",
		Description: "Zweck",
		DateLayout:  "02.01.2006",
	}

	result, err := im.Run(ctx, csvData, testAccount, "umsatz.csv", mapping, testUser)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("expected one import, got %+v", result)
	}
}

func TestRunMissingMappedColumn(t *testing.T) {
	im, _, testUser, testAccount := importerFixture(t)

	csvData := []byte("date,value\n2025-01-15,12.50\n")
	mapping := Mapping{Date: "date", Amount: "amount", Description: "description"}

	_, err := im.Run(context.Background(), csvData, testAccount, "x.csv", mapping, testUser)
	if _, ok := apperr.As(err); !ok {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func fmtInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return -1
}
