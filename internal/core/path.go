package core

import (
	"fmt"
	"strings"
)

// FieldPath is a field name split into its nested segments.
type FieldPath []string

// ParsePath splits a dot-separated field name.
func ParsePath(field string) FieldPath {
	return strings.Split(field, ".")
}

func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// SetPath assigns value at path, creating intermediate maps as needed.
// It fails when a segment on the way is already a non-map value.
func SetPath(record map[string]any, path FieldPath, value any) error {
	if len(path) == 0 {
		return fmt.Errorf("empty field path")
	}

	node := record
	for i, seg := range path[:len(path)-1] {
		next, ok := node[seg]
		if !ok {
			child := make(map[string]any)
			node[seg] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("field %s: %s is not an object", path, path[:i+1])
		}
		node = child
	}

	leaf := path[len(path)-1]
	if _, isMap := node[leaf].(map[string]any); isMap {
		return fmt.Errorf("field %s: would overwrite nested object", path)
	}
	node[leaf] = value
	return nil
}

// GetPath returns the value at path.
func GetPath(record map[string]any, path FieldPath) (any, bool) {
	var cur any = record
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}
