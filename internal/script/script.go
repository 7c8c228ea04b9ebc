// Package script runs operator-supplied JavaScript against a
// pre-authenticated client. This is the primary surface for LLM agents:
// instead of one CLI flag per server argument, the agent writes a short
// script with full access to the typed verbs and sets `result` for
// structured output.
package script

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/odoo-cli/odoo-cli/internal/odoo"
)

// Result carries what a script produced: the exported `result` binding
// and everything written through print().
type Result struct {
	Value  any
	Output string
}

// Runner owns one goja VM bound to one client.
type Runner struct {
	vm      *goja.Runtime
	client  *odoo.Client
	output  strings.Builder
	lastErr error
}

// NewRunner builds a VM exposing the client API under `client`, plus a
// print() helper for unstructured output.
func NewRunner(client *odoo.Client) *Runner {
	r := &Runner{
		vm:     goja.New(),
		client: client,
	}
	r.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	r.vm.Set("client", r.clientObject())
	r.vm.Set("print", r.printFn)
	r.vm.Set("result", goja.Undefined())
	return r
}

// Run executes one script. Scripts honoring the configured budget see
// the verbs block normally; past the deadline the VM is interrupted.
// Client errors thrown inside the script surface with their original
// error kind so exit codes stay correct.
func (r *Runner) Run(src string, timeout time.Duration) (Result, error) {
	r.lastErr = nil
	r.output.Reset()

	if timeout > 0 {
		timer := time.AfterFunc(timeout, func() {
			r.vm.Interrupt("script timeout")
		})
		defer timer.Stop()
	}

	_, err := r.vm.RunString(src)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return Result{Output: r.output.String()}, fmt.Errorf("script: execution timed out after %s", timeout)
		}
		if r.lastErr != nil {
			return Result{Output: r.output.String()}, r.lastErr
		}
		var ex *goja.Exception
		if errors.As(err, &ex) {
			return Result{Output: r.output.String()}, fmt.Errorf("script: %s", ex.Value().String())
		}
		return Result{Output: r.output.String()}, fmt.Errorf("script: %w", err)
	}

	res := Result{Output: r.output.String()}
	if v := r.vm.Get("result"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		res.Value = v.Export()
	}
	return res, nil
}

func (r *Runner) printFn(call goja.FunctionCall) goja.Value {
	parts := make([]string, 0, len(call.Arguments))
	for _, arg := range call.Arguments {
		parts = append(parts, arg.String())
	}
	r.output.WriteString(strings.Join(parts, " "))
	r.output.WriteByte('\n')
	return goja.Undefined()
}

// fail records the Go error and raises it as a JS exception. Recording
// it lets Run surface the typed error instead of a stringified copy.
func (r *Runner) fail(err error) {
	r.lastErr = err
	panic(r.vm.ToValue(err.Error()))
}

// clientObject builds the `client` binding. Method names mirror the
// Python generation of this tool so existing agent prompts keep working.
func (r *Runner) clientObject() map[string]any {
	return map[string]any{
		"search": func(model string, domain []any, opts map[string]any) []int64 {
			ids, err := r.client.Search(model, domain, searchOptions(opts))
			if err != nil {
				r.fail(err)
			}
			return ids
		},
		"search_read": func(model string, domain []any, fields []string, opts map[string]any) []map[string]any {
			records, err := r.client.SearchRead(model, domain, fields, searchOptions(opts))
			if err != nil {
				r.fail(err)
			}
			return records
		},
		"read": func(model string, ids []int64, fields []string) []map[string]any {
			records, err := r.client.Read(model, ids, fields, nil)
			if err != nil {
				r.fail(err)
			}
			return records
		},
		"search_count": func(model string, domain []any) int64 {
			n, err := r.client.SearchCount(model, domain, nil)
			if err != nil {
				r.fail(err)
			}
			return n
		},
		"name_get": func(model string, ids []int64) []odoo.NameEntry {
			entries, err := r.client.NameGet(model, ids, nil)
			if err != nil {
				r.fail(err)
			}
			return entries
		},
		"name_search": func(model, name string, opts map[string]any) []odoo.NameEntry {
			entries, err := r.client.NameSearch(model, name, optAny(opts, "domain"), optString(opts, "operator"), optInt(opts, "limit"), nil)
			if err != nil {
				r.fail(err)
			}
			return entries
		},
		"fields_get": func(model string, fields, attributes []string) map[string]any {
			defs, err := r.client.FieldsGet(model, fields, attributes)
			if err != nil {
				r.fail(err)
			}
			return defs
		},
		"create": func(model string, values map[string]any) int64 {
			id, err := r.client.Create(model, values, nil)
			if err != nil {
				r.fail(err)
			}
			return id
		},
		"write": func(model string, ids []int64, values map[string]any) bool {
			if err := r.client.Write(model, ids, values, nil); err != nil {
				r.fail(err)
			}
			return true
		},
		"unlink": func(model string, ids []int64) bool {
			if err := r.client.Unlink(model, ids, nil); err != nil {
				r.fail(err)
			}
			return true
		},
		"execute": func(model, method string, args []any, kw map[string]any) any {
			result, err := r.client.Execute(model, method, args, kw)
			if err != nil {
				r.fail(err)
			}
			return result
		},
		"get_models": func() []string {
			models, err := r.client.Models()
			if err != nil {
				r.fail(err)
			}
			return models
		},
		"version": func() map[string]any {
			info, err := r.client.Version()
			if err != nil {
				r.fail(err)
			}
			return info
		},
	}
}

func searchOptions(opts map[string]any) *odoo.SearchOptions {
	if len(opts) == 0 {
		return nil
	}
	out := &odoo.SearchOptions{
		Offset: optInt(opts, "offset"),
		Limit:  optInt(opts, "limit"),
		Order:  optString(opts, "order"),
	}
	if ctx, ok := opts["context"].(map[string]any); ok {
		out.Context = ctx
	}
	return out
}

func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

func optAny(opts map[string]any, key string) []any {
	v, _ := opts[key].([]any)
	return v
}
