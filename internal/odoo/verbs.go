package odoo

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SearchOptions tune search-style verbs. The zero value means no offset,
// no limit, server-default ordering.
type SearchOptions struct {
	Offset  int
	Limit   int
	Order   string
	Context map[string]any
}

func (o *SearchOptions) kwargs(c *Client) map[string]any {
	kw := map[string]any{}
	if o == nil {
		if ctx := c.mergeContext(nil); ctx != nil {
			kw["context"] = ctx
		}
		return kw
	}
	if o.Offset > 0 {
		kw["offset"] = o.Offset
	}
	if o.Limit > 0 {
		kw["limit"] = o.Limit
	}
	if o.Order != "" {
		kw["order"] = o.Order
	}
	if ctx := c.mergeContext(o.Context); ctx != nil {
		kw["context"] = ctx
	}
	return kw
}

// Search returns the ids of records matching a domain.
func (c *Client) Search(model string, domain []any, opts *SearchOptions) ([]int64, error) {
	if domain == nil {
		domain = []any{}
	}
	result, err := c.Call(model, "search", []any{domain}, opts.kwargs(c))
	if err != nil {
		return nil, err
	}
	return toInt64Slice(result), nil
}

// Read fetches records by id. A nil fields slice reads every field.
func (c *Client) Read(model string, ids []int64, fields []string, ctx map[string]any) ([]map[string]any, error) {
	kw := map[string]any{}
	if fields != nil {
		kw["fields"] = fields
	}
	if merged := c.mergeContext(ctx); merged != nil {
		kw["context"] = merged
	}
	result, err := c.Call(model, "read", []any{idsToArgs(ids)}, kw)
	if err != nil {
		return nil, err
	}
	return toRecordSlice(result), nil
}

// SearchRead searches and reads in a single round trip.
func (c *Client) SearchRead(model string, domain []any, fields []string, opts *SearchOptions) ([]map[string]any, error) {
	if domain == nil {
		domain = []any{}
	}
	kw := opts.kwargs(c)
	if fields != nil {
		kw["fields"] = fields
	}
	result, err := c.Call(model, "search_read", []any{domain}, kw)
	if err != nil {
		return nil, err
	}
	return toRecordSlice(result), nil
}

// SearchCount counts records matching a domain.
func (c *Client) SearchCount(model string, domain []any, ctx map[string]any) (int64, error) {
	if domain == nil {
		domain = []any{}
	}
	kw := map[string]any{}
	if merged := c.mergeContext(ctx); merged != nil {
		kw["context"] = merged
	}
	result, err := c.Call(model, "search_count", []any{domain}, kw)
	if err != nil {
		return 0, err
	}
	n, _ := asInt64(result)
	return n, nil
}

// FieldsGet returns field definitions for a model. Both filters are
// optional; attributes like "type", "string", "required" keep the
// payload small.
func (c *Client) FieldsGet(model string, fields, attributes []string) (map[string]any, error) {
	kw := map[string]any{}
	if fields != nil {
		kw["allfields"] = fields
	}
	if attributes != nil {
		kw["attributes"] = attributes
	}
	result, err := c.Call(model, "fields_get", nil, kw)
	if err != nil {
		return nil, err
	}
	defs, _ := result.(map[string]any)
	return defs, nil
}

// NameEntry is one (id, display name) pair as returned by name_get and
// name_search.
type NameEntry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func toNameEntries(v any) []NameEntry {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]NameEntry, 0, len(items))
	for _, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		id, _ := asInt64(pair[0])
		name, _ := pair[1].(string)
		out = append(out, NameEntry{ID: id, Name: name})
	}
	return out
}

// NameGet resolves display names for record ids; cheaper than Read when
// only the name is needed.
func (c *Client) NameGet(model string, ids []int64, ctx map[string]any) ([]NameEntry, error) {
	kw := map[string]any{}
	if merged := c.mergeContext(ctx); merged != nil {
		kw["context"] = merged
	}
	result, err := c.Call(model, "name_get", []any{idsToArgs(ids)}, kw)
	if err != nil {
		return nil, err
	}
	return toNameEntries(result), nil
}

// NameSearch performs a fuzzy search on a model's display name.
func (c *Client) NameSearch(model, name string, domain []any, operator string, limit int, ctx map[string]any) ([]NameEntry, error) {
	if domain == nil {
		domain = []any{}
	}
	if operator == "" {
		operator = "ilike"
	}
	if limit <= 0 {
		limit = 100
	}
	kw := map[string]any{}
	if merged := c.mergeContext(ctx); merged != nil {
		kw["context"] = merged
	}
	result, err := c.Call(model, "name_search", []any{name, domain, operator, limit}, kw)
	if err != nil {
		return nil, err
	}
	return toNameEntries(result), nil
}

// Execute runs an arbitrary model method. The read-only gate still
// applies when the method is in the mutating set.
func (c *Client) Execute(model, method string, args []any, kw map[string]any) (any, error) {
	merged := c.mergeContext(nil)
	if kw == nil && merged != nil {
		kw = map[string]any{}
	}
	if merged != nil {
		if callCtx, ok := kw["context"].(map[string]any); ok {
			kw["context"] = c.mergeContext(callCtx)
		} else if _, present := kw["context"]; !present {
			kw["context"] = merged
		}
	}
	return c.Call(model, method, args, kw)
}

// Create inserts one record and returns its id.
func (c *Client) Create(model string, values map[string]any, ctx map[string]any) (int64, error) {
	kw := map[string]any{}
	if merged := c.mergeContext(ctx); merged != nil {
		kw["context"] = merged
	}
	result, err := c.Call(model, "create", []any{values}, kw)
	if err != nil {
		return 0, err
	}
	id, ok := asInt64(result)
	if !ok {
		return 0, serverError("Odoo error: unexpected create result", fmt.Sprintf("%v", result))
	}
	return id, nil
}

// Write updates the given records in place.
func (c *Client) Write(model string, ids []int64, values map[string]any, ctx map[string]any) error {
	kw := map[string]any{}
	if merged := c.mergeContext(ctx); merged != nil {
		kw["context"] = merged
	}
	_, err := c.Call(model, "write", []any{idsToArgs(ids), values}, kw)
	return err
}

// Unlink deletes the given records.
func (c *Client) Unlink(model string, ids []int64, ctx map[string]any) error {
	kw := map[string]any{}
	if merged := c.mergeContext(ctx); merged != nil {
		kw["context"] = merged
	}
	_, err := c.Call(model, "unlink", []any{idsToArgs(ids)}, kw)
	return err
}

// Version fetches server version info without authenticating.
func (c *Client) Version() (map[string]any, error) {
	result, err := c.rpc("common", "version", []any{})
	if err != nil {
		return nil, err
	}
	info, _ := result.(map[string]any)
	return info, nil
}

// Models returns the sorted model catalog. The listing is expensive, so
// results are cached per server+database for 24 hours; corruption or
// expiry silently fall back to the server round trip.
func (c *Client) Models() ([]string, error) {
	key := c.modelsCacheKey()
	if c.cache != nil {
		if raw, ok := c.cache.Get(key, modelsCacheTTL); ok {
			var models []string
			if err := json.Unmarshal(raw, &models); err == nil {
				return models, nil
			}
			c.cache.Clear(key)
		}
	}

	ids, err := c.Search("ir.model", nil, nil)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	records, err := c.Read("ir.model", ids, []string{"model"}, nil)
	if err != nil {
		return nil, err
	}

	models := make([]string, 0, len(records))
	for _, rec := range records {
		if name, ok := rec["model"].(string); ok {
			models = append(models, name)
		}
	}
	sort.Strings(models)

	if c.cache != nil {
		c.cache.Set(key, models, modelsCacheTTL)
	}
	return models, nil
}

// RefreshModels drops the cached catalog for this server+database.
func (c *Client) RefreshModels() {
	if c.cache != nil {
		c.cache.Clear(c.modelsCacheKey())
	}
}

func (c *Client) modelsCacheKey() string {
	return "models_" + cacheKeyMaterial(c.url, c.db)
}

func cacheKeyMaterial(url, db string) string {
	return url + ":" + db
}
