package fieldval

import (
	"reflect"
	"testing"
)

func TestParseValuesInference(t *testing.T) {
	values, err := ParseValues([]string{
		"name=Acme Corp",
		"active=true",
		"archived=False",
		"parent_id=null",
		"ref='PO-001'",
		`note="has = sign"`,
		"sequence=42",
		"amount=19.99",
		"tag_ids=[1,2,3]",
		"codes=[a, b, 'c']",
		"empty=[]",
	})
	if err != nil {
		t.Fatalf("ParseValues returned error: %v", err)
	}

	want := map[string]any{
		"name":      "Acme Corp",
		"active":    true,
		"archived":  false,
		"parent_id": false,
		"ref":       "PO-001",
		"note":      "has = sign",
		"sequence":  int64(42),
		"amount":    19.99,
		"tag_ids":   []int64{1, 2, 3},
		"codes":     []string{"a", "b", "c"},
		"empty":     []any{},
	}
	for key, expected := range want {
		got, ok := values[key]
		if !ok {
			t.Fatalf("missing key %q", key)
		}
		if !reflect.DeepEqual(got, expected) {
			t.Fatalf("%s = %#v (%T), want %#v (%T)", key, got, got, expected, expected)
		}
	}
	if len(values) != len(want) {
		t.Fatalf("got %d values, want %d", len(values), len(want))
	}
}

func TestParseValuesErrors(t *testing.T) {
	for _, bad := range []string{"no-equals", "=value", " =value"} {
		if _, err := ParseValues([]string{bad}); err == nil {
			t.Fatalf("ParseValues(%q) succeeded, want error", bad)
		}
	}
}

func TestParseContextEmpty(t *testing.T) {
	ctx, err := ParseContext(nil)
	if err != nil {
		t.Fatalf("ParseContext(nil) returned error: %v", err)
	}
	if ctx != nil {
		t.Fatalf("expected nil context, got %#v", ctx)
	}
}

func TestParseContextPairs(t *testing.T) {
	ctx, err := ParseContext([]string{"lang=fr_FR", "active_test=false"})
	if err != nil {
		t.Fatalf("ParseContext returned error: %v", err)
	}
	if ctx["lang"] != "fr_FR" {
		t.Fatalf("lang = %#v, want fr_FR", ctx["lang"])
	}
	if ctx["active_test"] != false {
		t.Fatalf("active_test = %#v, want false", ctx["active_test"])
	}
}
