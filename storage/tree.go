package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable marks failures talking to a backing store: network,
// permission or timeout. Callers report it to the user; nothing retries.
var ErrUnavailable = errors.New("store unavailable")

// TreeStore is a hosted tree-shaped key/value store. Paths are slash
// separated ("properties/-Nabc"). Reads of absent nodes are not errors.
type TreeStore interface {
	// Get decodes the node at path into dest. It reports false when the node is absent.
	Get(ctx context.Context, path string, dest interface{}) (bool, error)
	// Set creates or replaces the node at path.
	Set(ctx context.Context, path string, value interface{}) error
	// Push writes value under a new store-generated, time-ordered child key of path.
	Push(ctx context.Context, path string, value interface{}) (string, error)
	// Update merges fields into the node at path. Absent fields are untouched;
	// a nil value removes that child.
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	// Delete removes the node at path and everything below it.
	Delete(ctx context.Context, path string) error
}

const serverValueKey = ".sv"

// ServerTimestamp is a placeholder the store replaces with its own clock, in
// epoch milliseconds, when the value is written.
func ServerTimestamp() map[string]interface{} {
	return map[string]interface{}{serverValueKey: "timestamp"}
}

func isServerTimestamp(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	return ok && len(m) == 1 && m[serverValueKey] == "timestamp"
}

// resolveServerValues replaces server timestamp placeholders in a normalized
// JSON value with now.
func resolveServerValues(v interface{}, now int64) interface{} {
	if isServerTimestamp(v) {
		return float64(now)
	}
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			node[k] = resolveServerValues(child, now)
		}
	case []interface{}:
		for i, child := range node {
			node[i] = resolveServerValues(child, now)
		}
	}
	return v
}

// normalize round-trips a Go value through JSON so stores only ever hold
// maps, slices, strings, float64, bool and nil.
func normalize(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode node: %w", err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return out, nil
}

// compact drops nulls, empty objects and empty arrays the way the hosted store
// does, so every backend returns the same shape for the same write.
func compact(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			if c := compact(child); c == nil {
				delete(node, k)
			} else {
				node[k] = c
			}
		}
		if len(node) == 0 {
			return nil
		}
	case []interface{}:
		out := node[:0]
		for _, child := range node {
			if c := compact(child); c != nil {
				out = append(out, c)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	}
	return v
}

// prepare normalizes a value for writing and stamps server timestamps.
func prepare(v interface{}, now int64) (interface{}, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return compact(resolveServerValues(n, now)), nil
}

// decodeInto copies a normalized value into dest.
func decodeInto(v interface{}, dest interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// getIn returns the value at parts below node, or nil.
func getIn(node interface{}, parts []string) interface{} {
	for _, part := range parts {
		children, ok := node.(map[string]interface{})
		if !ok {
			return nil
		}
		node = children[part]
	}
	return node
}

// setIn writes v at parts below node and returns the new node. A nil v
// removes the target; parents left empty are removed as well.
func setIn(node interface{}, parts []string, v interface{}) interface{} {
	if len(parts) == 0 {
		return v
	}
	children, ok := node.(map[string]interface{})
	if !ok {
		if v == nil {
			return node
		}
		children = make(map[string]interface{})
	}
	if child := setIn(children[parts[0]], parts[1:], v); child == nil {
		delete(children, parts[0])
	} else {
		children[parts[0]] = child
	}
	if len(children) == 0 {
		return nil
	}
	return children
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func cleanPath(path string) string {
	return strings.Join(splitPath(path), "/")
}

// unavailable wraps a backend failure so callers can test for ErrUnavailable.
func unavailable(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, op, path, err)
}
