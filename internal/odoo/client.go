// Package odoo implements the JSON-RPC client used to talk to an Odoo
// server. One Client owns one persistent HTTP connection, authenticates
// lazily on first use, retries transport failures with a fixed delay and
// enforces the read-only policy before any mutating call leaves the
// process.
package odoo

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/odoo-cli/odoo-cli/internal/cache"
)

const (
	rpcPath        = "/jsonrpc"
	maxAttempts    = 3
	retryDelay     = 2 * time.Second
	modelsCacheTTL = 24 * time.Hour
)

// writeMethods are the model methods blocked when the client is read-only.
var writeMethods = map[string]struct{}{
	"create": {},
	"write":  {},
	"unlink": {},
	"copy":   {},
}

var schemeRe = regexp.MustCompile(`^https?://`)

// Config carries the settings a Client is constructed with. It is built
// once per invocation by the configuration resolver and passed in
// explicitly; the Client never re-reads configuration after construction.
type Config struct {
	URL        string
	DB         string
	Username   string
	Password   string
	Timeout    time.Duration
	VerifySSL  bool
	ReadOnly   bool
	ForceWrite bool

	// Context is the ambient key/value context applied to every call.
	// Call-site context keys win on conflict.
	Context map[string]any
}

// Client is a JSON-RPC client bound to one server and database.
type Client struct {
	url        string
	db         string
	username   string
	password   string
	timeout    time.Duration
	verifySSL  bool
	readOnly   bool
	forceWrite bool
	ambientCtx map[string]any

	uid    int64
	http   *http.Client
	cache  *cache.Cache
	nextID int64

	// sleep is swapped out by tests to avoid real retry delays.
	sleep func(time.Duration)
}

// New builds a Client from a resolved configuration. No network traffic
// happens until Connect or the first verb call.
func New(cfg Config) *Client {
	u := normalizeURL(cfg.URL)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
		MaxConnsPerHost:     1,
	}
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		url:        u,
		db:         cfg.DB,
		username:   cfg.Username,
		password:   cfg.Password,
		timeout:    timeout,
		verifySSL:  cfg.VerifySSL,
		readOnly:   cfg.ReadOnly,
		forceWrite: cfg.ForceWrite,
		ambientCtx: cfg.Context,
		http:       &http.Client{Timeout: timeout, Transport: transport},
		cache:      cache.New(""),
		sleep:      time.Sleep,
	}
}

// normalizeURL ensures the server URL has a scheme and no trailing slash.
func normalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !schemeRe.MatchString(trimmed) {
		trimmed = "https://" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}

// URL returns the normalized server URL.
func (c *Client) URL() string { return c.url }

// DB returns the configured database name.
func (c *Client) DB() string { return c.db }

// UID returns the authenticated user id, or 0 before login.
func (c *Client) UID() int64 { return c.uid }

// ReadOnly reports whether mutating calls are blocked.
func (c *Client) ReadOnly() bool { return c.readOnly && !c.forceWrite }

// SetCache replaces the response cache. Passing nil disables catalog
// caching entirely.
func (c *Client) SetCache(store *cache.Cache) { c.cache = store }

// Connect performs the login handshake and stores the returned user id.
// Verb calls invoke it lazily, so calling it manually is only needed to
// probe connectivity (e.g. "profiles test").
func (c *Client) Connect() error {
	result, err := c.rpc("common", "login", []any{c.db, c.username, c.password})
	if err != nil {
		var oerr *Error
		// A server-side rejection of the login tuple is an auth problem,
		// not a transport one.
		if asError(err, &oerr) && oerr.Kind == KindServer {
			return authError(oerr.Details)
		}
		return err
	}

	uid, ok := asInt64(result)
	if !ok || uid <= 0 {
		return authError("invalid username or password")
	}
	c.uid = uid

	if host := hostOf(c.url); host != "" {
		log.Printf("[odoo] authenticated with %s (uid %d)", host, uid)
	}
	return nil
}

// Call executes an arbitrary model method through execute_kw. It is the
// single funnel every typed verb routes through: the read-only gate and
// the retry loop live here and nowhere else.
func (c *Client) Call(model, method string, args []any, kw map[string]any) (any, error) {
	if _, mutating := writeMethods[method]; mutating && c.ReadOnly() {
		return nil, permissionError(method)
	}

	if c.uid == 0 {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	if args == nil {
		args = []any{}
	}
	if kw == nil {
		kw = map[string]any{}
	}

	return c.rpc("object", "execute_kw",
		[]any{c.db, c.uid, c.password, model, method, args, kw})
}

// rpc posts one JSON-RPC envelope, retrying transport failures up to
// maxAttempts with a fixed delay. Application-level errors surface
// immediately: retrying a logically rejected call cannot succeed.
func (c *Client) rpc(service, method string, args []any) (any, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := c.post(service, method, args)
		if err == nil {
			return result, nil
		}

		var oerr *Error
		if asError(err, &oerr) && oerr.Kind != KindConnection {
			return nil, err
		}

		lastErr = err
		if attempt < maxAttempts {
			log.Printf("[odoo] network error (attempt %d/%d): %v; retrying in %s",
				attempt, maxAttempts, err, retryDelay)
			c.sleep(retryDelay)
		}
	}
	return nil, lastErr
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// post performs a single HTTP round trip. Transport failures come back
// as connection errors; an "error" member in the envelope becomes a
// server (or auth, resolved by the caller) error.
func (c *Client) post(service, method string, args []any) (any, error) {
	c.nextID++
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.nextID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("odoo: marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.url+rpcPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("odoo: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, connectionError(err)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, connectionError(fmt.Errorf("decode response: %w", err))
	}

	if decoded.Error != nil {
		return nil, serverError("Odoo error: "+decoded.Error.Message, extractServerDetail(decoded.Error.Data))
	}

	if len(decoded.Result) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(decoded.Result, &result); err != nil {
		return nil, connectionError(fmt.Errorf("decode result: %w", err))
	}
	return result, nil
}

// extractServerDetail pulls the server-side message out of the error data
// payload when present. The configured secret never appears here: the
// server echoes its own text only.
func extractServerDetail(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var detail struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail.Message)
}

// mergeContext layers a call-site context over the ambient one. Shallow:
// top-level keys from the call win, nested values are not merged.
func (c *Client) mergeContext(callCtx map[string]any) map[string]any {
	if len(c.ambientCtx) == 0 && len(callCtx) == 0 {
		return nil
	}
	merged := make(map[string]any, len(c.ambientCtx)+len(callCtx))
	for k, v := range c.ambientCtx {
		merged[k] = v
	}
	for k, v := range callCtx {
		merged[k] = v
	}
	return merged
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
