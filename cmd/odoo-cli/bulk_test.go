package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestAggregateGlobal(t *testing.T) {
	records := []map[string]interface{}{
		{"amount_total": 100.0, "state": "sale"},
		{"amount_total": 50.0, "state": "draft"},
		{"amount_total": false, "state": "draft"}, // unset numeric field
	}
	spec := aggregateSpec{Sum: []string{"amount_total"}, Avg: []string{"amount_total"}, Count: true}

	results := aggregateRecords(records, spec)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	r := results[0]
	if r["count"] != 3 {
		t.Fatalf("count = %v, want 3", r["count"])
	}
	if r["amount_total_sum"] != 150.0 {
		t.Fatalf("sum = %v, want 150", r["amount_total_sum"])
	}
	// Non-numeric values are excluded from the average divisor.
	if r["amount_total_avg"] != 75.0 {
		t.Fatalf("avg = %v, want 75", r["amount_total_avg"])
	}
}

func TestAggregateGrouped(t *testing.T) {
	records := []map[string]interface{}{
		{"amount_total": 10.0, "state": "sale"},
		{"amount_total": 30.0, "state": "sale"},
		{"amount_total": 5.0, "state": "draft"},
	}
	spec := aggregateSpec{Avg: []string{"amount_total"}, Count: true, GroupBy: "state"}

	results := aggregateRecords(records, spec)
	if len(results) != 2 {
		t.Fatalf("groups = %d, want 2", len(results))
	}
	// Groups come back sorted by label.
	if results[0]["state"] != "draft" || results[1]["state"] != "sale" {
		t.Fatalf("group order wrong: %v", results)
	}
	if results[0]["count"] != 1 || results[1]["count"] != 2 {
		t.Fatalf("per-group counts wrong: %v", results)
	}
	if results[1]["amount_total_avg"] != 20.0 {
		t.Fatalf("sale avg = %v, want 20", results[1]["amount_total_avg"])
	}
}

func TestAggregateEmptyAvgIsZero(t *testing.T) {
	results := aggregateRecords(nil, aggregateSpec{Avg: []string{"x"}})
	if results[0]["x_avg"] != 0.0 {
		t.Fatalf("avg over nothing = %v, want 0", results[0]["x_avg"])
	}
}

func TestAggregateSpecFieldsAndColumns(t *testing.T) {
	spec := aggregateSpec{
		Sum:     []string{"amount", "qty"},
		Avg:     []string{"amount"},
		Count:   true,
		GroupBy: "state",
	}
	wantFields := []string{"amount", "qty", "state"}
	if got := spec.fields(); !reflect.DeepEqual(got, wantFields) {
		t.Fatalf("fields = %v, want %v", got, wantFields)
	}
	wantCols := []string{"state", "count", "amount_sum", "qty_sum", "amount_avg"}
	if got := spec.columns(); !reflect.DeepEqual(got, wantCols) {
		t.Fatalf("columns = %v, want %v", got, wantCols)
	}
}

func TestBatchInt64(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5}
	batches := batchInt64(ids, 2)
	want := [][]int64{{1, 2}, {3, 4}, {5}}
	if !reflect.DeepEqual(batches, want) {
		t.Fatalf("batches = %v, want %v", batches, want)
	}
	if got := batchInt64(ids, 0); len(got) != 1 || len(got[0]) != 5 {
		t.Fatalf("size 0 must yield one batch, got %v", got)
	}
	if got := batchInt64(nil, 3); got != nil {
		t.Fatalf("empty input must yield no batches, got %v", got)
	}
}

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRecordsFile(t *testing.T) {
	path := writeTestFile(t, "records.json",
		`[{"name": "A"}, {"name": "B", "email": "b@test.example"}]`)
	records, err := loadRecordsFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1]["email"] != "b@test.example" {
		t.Fatalf("records = %v", records)
	}

	for name, content := range map[string]string{
		"object.json": `{"name": "A"}`,
		"empty.json":  `[]`,
		"bad.json":    `not json`,
	} {
		if _, err := loadRecordsFile(writeTestFile(t, name, content)); err == nil {
			t.Fatalf("%s must be rejected", name)
		}
	}
	if _, err := loadRecordsFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("missing file must be rejected")
	}
}

func TestLoadUpdatesFile(t *testing.T) {
	path := writeTestFile(t, "updates.json",
		`{"123": {"name": "X"}, "124": {"name": "Y", "active": false}}`)
	updates, err := loadUpdatesFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 2 || updates[123]["name"] != "X" {
		t.Fatalf("updates = %v", updates)
	}

	for name, content := range map[string]string{
		"array.json":  `[{"name": "A"}]`,
		"badkey.json": `{"abc": {"name": "A"}}`,
		"empty.json":  `{}`,
	} {
		if _, err := loadUpdatesFile(writeTestFile(t, name, content)); err == nil {
			t.Fatalf("%s must be rejected", name)
		}
	}
}

func TestGroupUpdatesMergesIdenticalValues(t *testing.T) {
	updates := map[int64]map[string]interface{}{
		5: {"name": "Same"},
		3: {"name": "Same"},
		7: {"name": "Other"},
	}
	groups := groupUpdates(updates)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	var merged *updateGroup
	for i := range groups {
		if len(groups[i].IDs) == 2 {
			merged = &groups[i]
		}
	}
	if merged == nil {
		t.Fatalf("identical updates not merged: %v", groups)
	}
	if !reflect.DeepEqual(merged.IDs, []int64{3, 5}) {
		t.Fatalf("ids not sorted: %v", merged.IDs)
	}
	if merged.Values["name"] != "Same" {
		t.Fatalf("values lost: %v", merged.Values)
	}

	// Same input, same group order.
	again := groupUpdates(updates)
	if !reflect.DeepEqual(groups, again) {
		t.Fatalf("grouping not deterministic:\n%v\n%v", groups, again)
	}
}

func TestIDsFromResult(t *testing.T) {
	if got := idsFromResult([]interface{}{float64(1), float64(2)}); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("list result = %v", got)
	}
	if got := idsFromResult(float64(42)); !reflect.DeepEqual(got, []int64{42}) {
		t.Fatalf("scalar result = %v", got)
	}
	if got := idsFromResult("nonsense"); got != nil {
		t.Fatalf("non-numeric result = %v, want nil", got)
	}
}

func TestFormatCell(t *testing.T) {
	if got := formatCell(150.0); got != "150" {
		t.Fatalf("whole float = %q, want 150", got)
	}
	if got := formatCell(12.5); got != "12.5" {
		t.Fatalf("fraction = %q, want 12.5", got)
	}
	if got := formatCell("draft"); got != "draft" {
		t.Fatalf("string = %q", got)
	}
}
