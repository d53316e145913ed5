package adapter

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapopt/pkg/table"
)

// DecodeDocument reads a YAML (or JSON) data document. The top level must be
// a mapping from input names to values. Lists of records become tables;
// everything else is passed through for binding to classify.
func DecodeDocument(r io.Reader) (map[string]any, error) {
	var doc map[string]any
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to parse data document: %w", err)
	}

	inputs := make(map[string]any, len(doc))
	for name, v := range doc {
		value, err := documentValue(name, v)
		if err != nil {
			return nil, err
		}
		inputs[name] = value
	}
	return inputs, nil
}

// ReadDocument reads a data document from disk.
func ReadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data document: %w", err)
	}
	inputs, err := DecodeDocument(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inputs, nil
}

// ReadRecords reads a YAML file holding a list of records as a table.
func ReadRecords(name, path string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var items []map[string]any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%s: expected a list of records: %w", path, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s: no records", path)
	}
	return table.FromRecords(name, items, nil)
}

func documentValue(name string, v any) (any, error) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return v, nil
	}
	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		rec, ok := record(item)
		if !ok {
			// a plain list is a set or a one-dimensional sequence
			return v, nil
		}
		records = append(records, rec)
	}
	tbl, err := table.FromRecords(name, records, recordOrder(items))
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", name, err)
	}
	return tbl, nil
}

func record(item any) (map[string]any, bool) {
	switch m := item.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	}
	return nil, false
}

// recordOrder returns the keys of the first record sorted, so tables built
// from documents have a stable column order.
func recordOrder(items []any) []string {
	first, _ := record(items[0])
	keys := make([]string, 0, len(first))
	for k := range first {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
