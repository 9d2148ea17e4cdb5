package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tablechat/tablechat/internal/chat"
	"github.com/tablechat/tablechat/internal/config"
	"github.com/tablechat/tablechat/internal/observability"
	"github.com/tablechat/tablechat/internal/store/duckdb"
)

const businessCSV = "Order Date,Region,Revenue,Units\n" +
	"2023-01-02,North,100.5,3\n" +
	"2023-01-03,South,,4\n" +
	",,,\n" +
	"2023-01-05,East,80,\n"

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "business.csv")
	if err := os.WriteFile(path, []byte(businessCSV), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestClientAskPostsQuestion(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"North","table":null,"table_error":null}`))
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), []string{
		"client", "--base-url", srv.URL, "ask", "--session-id", "s1", "which", "region?",
	}, Options{Stdout: &stdout, Stderr: &stderr})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if gotMethod != http.MethodPost || gotPath != "/ask" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotBody["question"] != "which region?" || gotBody["session_id"] != "s1" {
		t.Fatalf("body = %v", gotBody)
	}
	if !strings.Contains(stdout.String(), `"response": "North"`) {
		t.Fatalf("stdout = %s", stdout.String())
	}
}

func TestClientResetAndReload(t *testing.T) {
	var paths []string
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		_, _ = w.Write([]byte(`{"status":"success","message":"ok"}`))
	}))
	defer srv.Close()

	for _, args := range [][]string{
		{"client", "--base-url", srv.URL, "reset"},
		{"client", "--base-url", srv.URL, "reset", "--session-id", "s2"},
		{"client", "--base-url", srv.URL, "reload"},
	} {
		if code := Execute(context.Background(), args, Options{}); code != 0 {
			t.Fatalf("Execute(%v) exit code = %d", args, code)
		}
	}
	if strings.Join(paths, ",") != "/reset-session,/reset-session,/reload-data" {
		t.Fatalf("paths = %v", paths)
	}
	if bodies[0] != "" || bodies[1] != `{"session_id":"s2"}` || bodies[2] != "" {
		t.Fatalf("bodies = %q", bodies)
	}
}

func TestClientReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"No question provided"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Execute(context.Background(), []string{"client", "--base-url", srv.URL, "ask", "x"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stderr.String(), "http 400") {
		t.Fatalf("stderr = %s", stderr.String())
	}
}

func TestUnknownCommandFails(t *testing.T) {
	var stderr bytes.Buffer
	if code := Execute(context.Background(), []string{"nope"}, Options{Stderr: &stderr}); code != 1 {
		t.Fatalf("exit code = %d", code)
	}
	if code := Execute(context.Background(), []string{"client", "ask"}, Options{}); code != 1 {
		t.Fatalf("ask without question exit code = %d", code)
	}
}

func TestPreprocessPrintsSummaryAndLoadsDB(t *testing.T) {
	csvPath := writeCSV(t)
	dbPath := filepath.Join(t.TempDir(), "out.duckdb")

	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), []string{"preprocess", "--csv", csvPath, "--db", dbPath}, Options{
		Stdout: &stdout,
		Stderr: &stderr,
		Lookup: mapLookup(map[string]string{}),
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.HasPrefix(out, "The dataset has 3 rows and 4 columns.") {
		t.Fatalf("stdout = %s", out)
	}
	if !strings.Contains(out, "Column 'Order Date' is of type 'datetime'") || !strings.Contains(out, "COLUMN") {
		t.Fatalf("stdout = %s", out)
	}

	store, err := duckdb.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("duckdb.Open() error = %v", err)
	}
	defer store.Close()
	result, err := store.QueryUnsafe(context.Background(), `SELECT COUNT(*) FROM raw_data`)
	if err != nil {
		t.Fatalf("QueryUnsafe() error = %v", err)
	}
	if result.Rows[0][0] != int64(3) {
		t.Fatalf("count = %v", result.Rows[0][0])
	}
}

func TestPreprocessJSONReport(t *testing.T) {
	var stdout bytes.Buffer
	code := Execute(context.Background(), []string{"preprocess", "--csv", writeCSV(t), "--json", "--date-threshold", "0.9"}, Options{
		Stdout: &stdout,
		Lookup: mapLookup(map[string]string{}),
	})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	var report preprocessReport
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		t.Fatalf("json decode failed: %v\n%s", err, stdout.String())
	}
	if report.Rows != 3 || report.Columns != 4 || len(report.Inferences) != 4 {
		t.Fatalf("report = %+v", report)
	}
	if report.Inferences[0].Column != "Order Date" || report.Inferences[0].Type != "datetime" {
		t.Fatalf("first inference = %+v", report.Inferences[0])
	}
}

func TestPreprocessMissingFileFails(t *testing.T) {
	code := Execute(context.Background(), []string{"preprocess", "--csv", filepath.Join(t.TempDir(), "missing.csv")}, Options{
		Lookup: mapLookup(map[string]string{}),
	})
	if code != 1 {
		t.Fatalf("exit code = %d", code)
	}
}

func TestServeFailsWithoutAPIKey(t *testing.T) {
	t.Setenv(chat.APIKeyEnv, "")
	cfg, err := config.Load(serviceName, mapLookup(map[string]string{
		"TABLECHAT_PROFILE":       "test",
		"TABLECHAT_DATA_CSV_PATH": writeCSV(t),
		"TABLECHAT_DATA_DB_PATH":  filepath.Join(t.TempDir(), "db.duckdb"),
	}))
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	_, err = newApplication(context.Background(), cfg, observability.DiscardLogger())
	if !errors.Is(err, chat.ErrAPIKeyRequired) {
		t.Fatalf("newApplication() error = %v, want ErrAPIKeyRequired", err)
	}
}

func TestServeFailsOnInvalidConfig(t *testing.T) {
	var stderr bytes.Buffer
	code := Execute(context.Background(), []string{"serve"}, Options{
		Stderr: &stderr,
		Lookup: mapLookup(map[string]string{"TABLECHAT_PROFILE": "bogus"}),
	})
	if code != 1 || !strings.Contains(stderr.String(), "load config") {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
}

func TestApplicationServesLoadedDataset(t *testing.T) {
	chatServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"East is smallest."}}]}`))
	}))
	defer chatServer.Close()

	cfg, err := config.Load(serviceName, mapLookup(map[string]string{
		"TABLECHAT_PROFILE":       "test",
		"TABLECHAT_AI_API_KEY":    "k",
		"TABLECHAT_AI_BASE_URL":   chatServer.URL,
		"TABLECHAT_DATA_CSV_PATH": writeCSV(t),
		"TABLECHAT_DATA_DB_PATH":  filepath.Join(t.TempDir(), "db.duckdb"),
	}))
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	app, err := newApplication(context.Background(), cfg, observability.DiscardLogger())
	if err != nil {
		t.Fatalf("newApplication() error = %v", err)
	}
	defer app.Close()

	for _, path := range []string{"/ready", "/summary"} {
		rr := httptest.NewRecorder()
		app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d, body = %s", path, rr.Code, rr.Body.String())
		}
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"Which region is smallest?"}`))
	app.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "East is smallest.") {
		t.Fatalf("POST /ask status = %d, body = %s", rr.Code, rr.Body.String())
	}
}
