package odoo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/odoo-cli/odoo-cli/internal/cache"
)

// rpcHandler receives the decoded envelope and returns a result, or an
// error payload when errMsg is non-empty.
type rpcHandler func(req rpcRequest) (result any, errMsg string)

// newRPCServer runs a fake /jsonrpc endpoint. Every request is recorded
// for later inspection.
func newRPCServer(t *testing.T, handle rpcHandler) (*httptest.Server, *[]rpcRequest) {
	t.Helper()
	var requests []rpcRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jsonrpc" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}
		requests = append(requests, req)

		result, errMsg := handle(req)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if errMsg != "" {
			resp["error"] = map[string]any{
				"code":    200,
				"message": "Odoo Server Error",
				"data":    map[string]any{"message": errMsg},
			}
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func testClient(t *testing.T, url string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		URL:      url,
		DB:       "testdb",
		Username: "bot",
		Password: "secret",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c := New(cfg)
	c.SetCache(nil)
	c.sleep = func(time.Duration) {}
	return c
}

// loginThen dispatches common/login to a fixed uid and everything else
// to the given handler.
func loginThen(uid int64, handle rpcHandler) rpcHandler {
	return func(req rpcRequest) (any, string) {
		if req.Params.Service == "common" && req.Params.Method == "login" {
			return uid, ""
		}
		return handle(req)
	}
}

func TestLazyLoginAndCall(t *testing.T) {
	server, requests := newRPCServer(t, loginThen(7, func(req rpcRequest) (any, string) {
		return []any{1, 2, 3}, ""
	}))
	c := testClient(t, server.URL, nil)

	ids, err := c.Search("res.partner", []any{[]any{"is_company", "=", true}}, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 {
		t.Fatalf("ids = %v", ids)
	}
	if c.UID() != 7 {
		t.Fatalf("uid = %d, want 7", c.UID())
	}

	if len(*requests) != 2 {
		t.Fatalf("expected login + call, got %d requests", len(*requests))
	}
	login := (*requests)[0]
	if login.JSONRPC != "2.0" || login.Method != "call" ||
		login.Params.Service != "common" || login.Params.Method != "login" {
		t.Fatalf("bad login envelope: %+v", login)
	}
	if len(login.Params.Args) != 3 || login.Params.Args[0] != "testdb" ||
		login.Params.Args[1] != "bot" || login.Params.Args[2] != "secret" {
		t.Fatalf("bad login args: %v", login.Params.Args)
	}

	call := (*requests)[1]
	if call.Params.Service != "object" || call.Params.Method != "execute_kw" {
		t.Fatalf("bad call envelope: %+v", call)
	}
	args := call.Params.Args
	if len(args) != 7 {
		t.Fatalf("execute_kw args = %v", args)
	}
	if args[0] != "testdb" || args[1] != float64(7) || args[2] != "secret" ||
		args[3] != "res.partner" || args[4] != "search" {
		t.Fatalf("execute_kw prefix wrong: %v", args[:5])
	}

	// A second verb call reuses the session: no second login.
	if _, err := c.Search("res.partner", nil, nil); err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if len(*requests) != 3 {
		t.Fatalf("expected 3 requests total, got %d", len(*requests))
	}
}

func TestReadOnlyBlocksBeforeNetwork(t *testing.T) {
	server, requests := newRPCServer(t, loginThen(7, func(req rpcRequest) (any, string) {
		return nil, ""
	}))
	c := testClient(t, server.URL, func(cfg *Config) { cfg.ReadOnly = true })

	for _, method := range []string{"create", "write", "unlink", "copy"} {
		_, err := c.Call("res.partner", method, nil, nil)
		var oerr *Error
		if !asError(err, &oerr) || oerr.Kind != KindPermission {
			t.Fatalf("%s: expected permission error, got %v", method, err)
		}
		if oerr.Suggestion == "" {
			t.Fatalf("%s: permission error must carry a remediation hint", method)
		}
	}
	if len(*requests) != 0 {
		t.Fatalf("read-only rejection must not touch the network, saw %d requests", len(*requests))
	}

	// Non-mutating methods still pass.
	if _, err := c.Call("res.partner", "search", nil, nil); err != nil {
		t.Fatalf("search on read-only client: %v", err)
	}
}

func TestForceWriteOverridesReadOnly(t *testing.T) {
	server, _ := newRPCServer(t, loginThen(7, func(req rpcRequest) (any, string) {
		return 42, ""
	}))
	c := testClient(t, server.URL, func(cfg *Config) {
		cfg.ReadOnly = true
		cfg.ForceWrite = true
	})

	id, err := c.Create("res.partner", map[string]any{"name": "Acme"}, nil)
	if err != nil {
		t.Fatalf("Create with force: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
}

func TestTransportErrorsRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Write([]byte("not json"))
	}))
	t.Cleanup(server.Close)

	var slept []time.Duration
	c := testClient(t, server.URL, nil)
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	err := c.Connect()
	var oerr *Error
	if !asError(err, &oerr) || oerr.Kind != KindConnection {
		t.Fatalf("expected connection error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if len(slept) != 2 {
		t.Fatalf("sleeps = %d, want 2 (no delay after the final attempt)", len(slept))
	}
	for _, d := range slept {
		if d != 2*time.Second {
			t.Fatalf("retry delay = %v, want 2s", d)
		}
	}
	if ExitCode(err) != ExitConnection {
		t.Fatalf("exit code = %d, want %d", ExitCode(err), ExitConnection)
	}
}

func TestTransientFailuresRecover(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.Write([]byte("not json"))
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": req.ID, "result": float64(9),
		})
	}))
	t.Cleanup(server.Close)

	var slept []time.Duration
	c := testClient(t, server.URL, nil)
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	if err := c.Connect(); err != nil {
		t.Fatalf("expected recovery on the third attempt, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if len(slept) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(slept))
	}
	if c.UID() != 9 {
		t.Fatalf("uid = %d, want 9", c.UID())
	}
}

func TestServerErrorsNotRetried(t *testing.T) {
	server, requests := newRPCServer(t, loginThen(7, func(req rpcRequest) (any, string) {
		return nil, "ValidationError: missing required field"
	}))
	c := testClient(t, server.URL, nil)

	_, err := c.Search("res.partner", nil, nil)
	var oerr *Error
	if !asError(err, &oerr) || oerr.Kind != KindServer {
		t.Fatalf("expected server error, got %v", err)
	}
	if oerr.Details != "ValidationError: missing required field" {
		t.Fatalf("server detail lost: %q", oerr.Details)
	}
	// login + exactly one failed call, no retries.
	if len(*requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(*requests))
	}
	if ExitCode(err) != ExitFailure {
		t.Fatalf("exit code = %d, want %d", ExitCode(err), ExitFailure)
	}
}

func TestRejectedLoginIsAuthError(t *testing.T) {
	// Odoo reports bad credentials as result=false.
	server, _ := newRPCServer(t, func(req rpcRequest) (any, string) {
		return false, ""
	})
	c := testClient(t, server.URL, nil)

	err := c.Connect()
	var oerr *Error
	if !asError(err, &oerr) || oerr.Kind != KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if ExitCode(err) != ExitAuth {
		t.Fatalf("exit code = %d, want %d", ExitCode(err), ExitAuth)
	}
}

func TestLoginServerErrorIsAuthError(t *testing.T) {
	server, _ := newRPCServer(t, func(req rpcRequest) (any, string) {
		return nil, "Access Denied"
	})
	c := testClient(t, server.URL, nil)

	err := c.Connect()
	var oerr *Error
	if !asError(err, &oerr) || oerr.Kind != KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
	if oerr.Details != "Access Denied" {
		t.Fatalf("details = %q", oerr.Details)
	}
}

func TestErrorMessagesNeverEchoPassword(t *testing.T) {
	server, _ := newRPCServer(t, func(req rpcRequest) (any, string) {
		return false, ""
	})
	c := testClient(t, server.URL, func(cfg *Config) { cfg.Password = "hunter2-secret" })

	err := c.Connect()
	if err == nil {
		t.Fatal("expected error")
	}
	var oerr *Error
	if !asError(err, &oerr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	for field, text := range map[string]string{
		"Error()":    err.Error(),
		"Details":    oerr.Details,
		"Suggestion": oerr.Suggestion,
	} {
		if strings.Contains(text, "hunter2-secret") {
			t.Fatalf("%s echoes the configured password: %q", field, text)
		}
	}
}

func TestContextMergeCallSiteWins(t *testing.T) {
	server, requests := newRPCServer(t, loginThen(7, func(req rpcRequest) (any, string) {
		return []any{}, ""
	}))
	c := testClient(t, server.URL, func(cfg *Config) {
		cfg.Context = map[string]any{"lang": "fr_FR", "tz": "Europe/Paris"}
	})

	_, err := c.Search("res.partner", nil, &SearchOptions{
		Context: map[string]any{"lang": "en_US"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	call := (*requests)[1]
	kwargs, ok := call.Params.Args[6].(map[string]any)
	if !ok {
		t.Fatalf("kwargs = %#v", call.Params.Args[6])
	}
	ctx, ok := kwargs["context"].(map[string]any)
	if !ok {
		t.Fatalf("context missing from kwargs: %#v", kwargs)
	}
	if ctx["lang"] != "en_US" {
		t.Fatalf("call-site context must win: %v", ctx["lang"])
	}
	if ctx["tz"] != "Europe/Paris" {
		t.Fatalf("ambient context lost: %v", ctx["tz"])
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"example.com":               "https://example.com",
		"https://example.com/":      "https://example.com",
		"http://localhost:8069":     "http://localhost:8069",
		"  https://a.example.com  ": "https://a.example.com",
		"example.com/odoo///":       "https://example.com/odoo",
		"": "",
	}
	for input, want := range cases {
		if got := normalizeURL(input); got != want {
			t.Fatalf("normalizeURL(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestModelsCatalogCached(t *testing.T) {
	server, requests := newRPCServer(t, loginThen(7, func(req rpcRequest) (any, string) {
		method := req.Params.Args[4]
		switch method {
		case "search":
			return []any{1, 2}, ""
		case "read":
			return []any{
				map[string]any{"id": 2, "model": "sale.order"},
				map[string]any{"id": 1, "model": "res.partner"},
			}, ""
		}
		return nil, "unexpected method"
	}))

	store := cache.New(t.TempDir())

	c := testClient(t, server.URL, nil)
	c.SetCache(store)
	models, err := c.Models()
	if err != nil {
		t.Fatalf("Models: %v", err)
	}
	if len(models) != 2 || models[0] != "res.partner" || models[1] != "sale.order" {
		t.Fatalf("models not sorted: %v", models)
	}
	fetches := len(*requests)

	// A fresh client against the same server+db serves from the cache.
	c2 := testClient(t, server.URL, nil)
	c2.SetCache(store)
	again, err := c2.Models()
	if err != nil {
		t.Fatalf("cached Models: %v", err)
	}
	if len(again) != 2 {
		t.Fatalf("cached models = %v", again)
	}
	if len(*requests) != fetches {
		t.Fatalf("cache hit still reached the server: %d -> %d", fetches, len(*requests))
	}

	// RefreshModels forces a refetch.
	c2.RefreshModels()
	if _, err := c2.Models(); err != nil {
		t.Fatalf("Models after refresh: %v", err)
	}
	if len(*requests) == fetches {
		t.Fatal("refresh did not drop the cached catalog")
	}
}
