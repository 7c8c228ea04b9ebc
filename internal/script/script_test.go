package script

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/odoo-cli/odoo-cli/internal/odoo"
)

// fakeOdoo answers login with uid 7 and every execute_kw with the
// provided result.
func fakeOdoo(t *testing.T, result any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64 `json:"id"`
			Params struct {
				Service string `json:"service"`
				Method  string `json:"method"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request: %v", err)
			return
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if req.Params.Service == "common" && req.Params.Method == "login" {
			resp["result"] = 7
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func testRunnerClient(t *testing.T, server *httptest.Server, readOnly bool) *odoo.Client {
	t.Helper()
	c := odoo.New(odoo.Config{
		URL:      server.URL,
		DB:       "testdb",
		Username: "bot",
		Password: "pw",
		ReadOnly: readOnly,
	})
	c.SetCache(nil)
	return c
}

func TestRunExportsResult(t *testing.T) {
	server := fakeOdoo(t, 5)
	r := NewRunner(testRunnerClient(t, server, false))

	res, err := r.Run(`result = {count: client.search_count("res.partner", [])}`, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	m, ok := res.Value.(map[string]any)
	if !ok {
		t.Fatalf("result = %#v", res.Value)
	}
	if n, _ := m["count"].(int64); n != 5 {
		t.Fatalf("count = %#v", m["count"])
	}
}

func TestRunCapturesPrint(t *testing.T) {
	server := fakeOdoo(t, []any{1, 2})
	r := NewRunner(testRunnerClient(t, server, false))

	res, err := r.Run(`
		var ids = client.search("res.partner", [], {limit: 2});
		print("found", ids.length, "records");
	`, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Output != "found 2 records\n" {
		t.Fatalf("output = %q", res.Output)
	}
	if res.Value != nil {
		t.Fatalf("no result assigned, got %#v", res.Value)
	}
}

func TestClientErrorsKeepTheirKind(t *testing.T) {
	server := fakeOdoo(t, true)
	r := NewRunner(testRunnerClient(t, server, true))

	_, err := r.Run(`client.unlink("res.partner", [1])`, 0)
	var oerr *odoo.Error
	if !errors.As(err, &oerr) || oerr.Kind != odoo.KindPermission {
		t.Fatalf("expected permission error through the VM, got %v", err)
	}
	if odoo.ExitCode(err) != odoo.ExitFailure {
		t.Fatalf("exit code = %d", odoo.ExitCode(err))
	}
}

func TestScriptExceptionsSurface(t *testing.T) {
	server := fakeOdoo(t, nil)
	r := NewRunner(testRunnerClient(t, server, false))

	_, err := r.Run(`throw new Error("boom")`, 0)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected script exception, got %v", err)
	}

	_, err = r.Run(`this is not javascript`, 0)
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRunawayScriptInterrupted(t *testing.T) {
	server := fakeOdoo(t, nil)
	r := NewRunner(testRunnerClient(t, server, false))

	start := time.Now()
	_, err := r.Run(`while (true) {}`, 100*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("interrupt took too long")
	}
}
