package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

// loadRecordsFile reads a JSON array of record value maps, the
// create-bulk input format.
func loadRecordsFile(path string) ([]map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%s must contain a JSON array of record objects: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s contains no records", path)
	}
	return records, nil
}

// updateGroup is one write call's worth of work: the ids that share an
// identical values map.
type updateGroup struct {
	IDs    []int64
	Values map[string]interface{}
}

// loadUpdatesFile reads the update-bulk input format: a JSON object
// keyed by record id, each value the fields to write for that record.
func loadUpdatesFile(path string) (map[int64]map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s must contain a JSON object keyed by record id: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s contains no updates", path)
	}
	updates := make(map[int64]map[string]interface{}, len(raw))
	for key, values := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid record id %q in %s", key, path)
		}
		updates[id] = values
	}
	return updates, nil
}

// groupUpdates batches ids that carry identical field updates into one
// write call each. Group and id order are stable regardless of map
// iteration order.
func groupUpdates(updates map[int64]map[string]interface{}) []updateGroup {
	byKey := map[string]*updateGroup{}
	for id, values := range updates {
		// Marshal sorts object keys, so equal maps share one key.
		encoded, err := json.Marshal(values)
		if err != nil {
			encoded = []byte(fmt.Sprint(values))
		}
		key := string(encoded)
		group, ok := byKey[key]
		if !ok {
			group = &updateGroup{Values: values}
			byKey[key] = group
		}
		group.IDs = append(group.IDs, id)
	}

	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	groups := make([]updateGroup, 0, len(keys))
	for _, key := range keys {
		group := byKey[key]
		sort.Slice(group.IDs, func(i, j int) bool { return group.IDs[i] < group.IDs[j] })
		groups = append(groups, *group)
	}
	return groups
}

// idsFromResult normalizes a create response: a batch create returns a
// list of ids, a single create returns one.
func idsFromResult(v interface{}) []int64 {
	if list, ok := v.([]interface{}); ok {
		ids := make([]int64, 0, len(list))
		for _, item := range list {
			if n, ok := numeric(item); ok {
				ids = append(ids, int64(n))
			}
		}
		return ids
	}
	if n, ok := numeric(v); ok {
		return []int64{int64(n)}
	}
	return nil
}

func newCreateBulkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "create-bulk <model>",
		Short:         "Create records in batches from a JSON file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			path, _ := cmd.Flags().GetString("file")
			records, err := loadRecordsFile(path)
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			batchSize, _ := cmd.Flags().GetInt("batch-size")
			if batchSize <= 0 {
				batchSize = len(records)
			}

			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}

			var created []int64
			batches := 0
			for start := 0; start < len(records); start += batchSize {
				end := start + batchSize
				if end > len(records) {
					end = len(records)
				}
				batches++
				result, err := client.Execute(args[0], "create",
					[]interface{}{records[start:end]}, nil)
				if err != nil {
					return f.Error(
						fmt.Sprintf("batch %d failed after %d record(s) were created", batches, len(created)),
						err)
				}
				created = append(created, idsFromResult(result)...)
			}

			return f.Success(
				fmt.Sprintf("Created %d %s record(s) in %d batch(es)", len(created), args[0], batches),
				map[string]interface{}{
					"model":      args[0],
					"created":    len(created),
					"ids":        created,
					"batches":    batches,
					"batch_size": batchSize,
				})
		},
	}
	cmd.Flags().StringP("file", "f", "", "JSON file with an array of records to create")
	cmd.MarkFlagRequired("file")
	cmd.Flags().Int("batch-size", 100, "Records created per request")
	return cmd
}

func newUpdateBulkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "update-bulk <model>",
		Short:         "Update records in batches from a JSON file",
		Long: `update-bulk applies per-record field updates from a JSON object keyed
by record id:

    {"123": {"name": "New Name"}, "124": {"name": "Other", "active": false}}

Records carrying identical updates are grouped into a single write call.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newOutputFormatter(cmd)
			path, _ := cmd.Flags().GetString("file")
			updates, err := loadUpdatesFile(path)
			if err != nil {
				return f.Error("invalid arguments", err)
			}
			batchSize, _ := cmd.Flags().GetInt("batch-size")

			client, _, err := resolveClient(cmd)
			if err != nil {
				return f.Error("configuration error", err)
			}

			groups := groupUpdates(updates)
			updated, calls := 0, 0
			for _, group := range groups {
				for _, batch := range batchInt64(group.IDs, batchSize) {
					calls++
					if err := client.Write(args[0], batch, group.Values, nil); err != nil {
						return f.Error(
							fmt.Sprintf("write failed after %d record(s) were updated", updated),
							err)
					}
					updated += len(batch)
				}
			}

			return f.Success(
				fmt.Sprintf("Updated %d %s record(s) in %d write call(s)", updated, args[0], calls),
				map[string]interface{}{
					"model":   args[0],
					"updated": updated,
					"groups":  len(groups),
					"calls":   calls,
				})
		},
	}
	cmd.Flags().StringP("file", "f", "", "JSON file mapping record ids to field updates")
	cmd.MarkFlagRequired("file")
	cmd.Flags().Int("batch-size", 100, "Records written per request")
	return cmd
}
