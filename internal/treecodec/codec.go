// Package treecodec converts nested JSON documents to and from flat leaf lists.
//
// [Flatten] walks a JSON-object-rooted document depth-first and emits one
// [Leaf] per non-object value, with a dotted path accumulated from the object
// keys in their original insertion order. Arrays, numbers, booleans, and null
// are leaves (stringified), never recursed into.
//
// [Rebuild] is the inverse on leaves: it reconstructs a nested object from
// dotted paths. The round trip is lossy by design — every leaf value comes
// back as a string, since translation operates on text.
//
// [Merge] substitutes translated leaf values back into the original document,
// preserving its key order and the untouched values. It is the finalize path
// for selected-keys jobs, where the output must contain the whole document
// rather than only the translated subset.
package treecodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Leaf is a single translatable value at a dotted path inside a JSON document.
type Leaf struct {
	Path  string
	Value string
}

// Flatten extracts the ordered leaf list from a JSON object document.
//
// The traversal is deterministic: identical input bytes always yield the same
// path set in the same depth-first, key-insertion order.
func Flatten(data []byte) ([]Leaf, error) {
	if !isObject(data) {
		return nil, fmt.Errorf("document root must be a JSON object")
	}
	var leaves []Leaf
	if err := flattenObject(data, "", &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

// FlattenPaths extracts only the leaves named by paths, in document order.
// A path selects either a single leaf or, when it names a nested object, that
// object's whole subtree. A path matching nothing in the document is an error.
func FlattenPaths(data []byte, paths []string) ([]Leaf, error) {
	all, err := Flatten(data)
	if err != nil {
		return nil, err
	}

	matched := make(map[string]bool, len(paths))
	var selected []Leaf
	for _, leaf := range all {
		for _, p := range paths {
			if leaf.Path == p || strings.HasPrefix(leaf.Path, p+".") {
				selected = append(selected, leaf)
				matched[p] = true
				break
			}
		}
	}

	for _, p := range paths {
		if !matched[p] {
			return nil, fmt.Errorf("path %q not found in document", p)
		}
	}

	return selected, nil
}

// flattenObject walks one object level, recursing into plain objects and
// emitting everything else as a leaf.
func flattenObject(data []byte, prefix string, leaves *[]Leaf) error {
	keys, values, err := parseObject(data)
	if err != nil {
		return err
	}

	for _, key := range keys {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		raw := values[key]
		if isObject(raw) {
			if err := flattenObject(raw, path, leaves); err != nil {
				return err
			}
			continue
		}

		value, err := leafString(raw)
		if err != nil {
			return fmt.Errorf("stringifying value at %s: %w", path, err)
		}
		*leaves = append(*leaves, Leaf{Path: path, Value: value})
	}

	return nil
}

// parseObject decodes a single JSON object preserving key order, which
// [encoding/json] map decoding would discard.
func parseObject(data []byte) ([]string, map[string]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	t, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("parsing JSON object: %w", err)
	}
	if delim, ok := t.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected {, got %v", t)
	}

	var keys []string
	values := make(map[string]json.RawMessage)

	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("reading object key: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected string key, got %T", kt)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("reading value for key %q: %w", key, err)
		}

		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = raw
	}

	return keys, values, nil
}

// isObject reports whether the raw JSON value is a plain object. This is the
// single recursion predicate: everything it rejects becomes a leaf.
func isObject(raw []byte) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// leafString coerces a raw JSON value to its string representation. JSON
// strings are unquoted; numbers, booleans, null, and arrays keep their
// compact JSON text.
func leafString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Rebuild reconstructs a nested object from dotted leaf paths. It is total
// for any list of non-empty paths; when paths conflict (one path is a prefix
// of another) the later leaf wins.
func Rebuild(leaves []Leaf) map[string]any {
	root := make(map[string]any)

	for _, leaf := range leaves {
		segments := strings.Split(leaf.Path, ".")
		node := root
		for _, seg := range segments[:len(segments)-1] {
			child, ok := node[seg].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[seg] = child
			}
			node = child
		}
		node[segments[len(segments)-1]] = leaf.Value
	}

	return root
}

// RebuildJSON renders the rebuilt tree as indented JSON with sorted keys.
func RebuildJSON(leaves []Leaf) ([]byte, error) {
	data, err := json.MarshalIndent(Rebuild(leaves), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling rebuilt document: %w", err)
	}
	return data, nil
}

// Merge re-renders the original document with the given leaves substituted in.
// Keys keep their original order and untouched values keep their original
// types; substituted leaves are always rendered as JSON strings.
func Merge(original []byte, leaves []Leaf) ([]byte, error) {
	if !isObject(original) {
		return nil, fmt.Errorf("document root must be a JSON object")
	}

	replacements := make(map[string]string, len(leaves))
	for _, leaf := range leaves {
		replacements[leaf.Path] = leaf.Value
	}

	var buf bytes.Buffer
	if err := mergeObject(&buf, original, "", replacements, 0); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func mergeObject(buf *bytes.Buffer, data []byte, prefix string, replacements map[string]string, depth int) error {
	keys, values, err := parseObject(data)
	if err != nil {
		return err
	}

	indent := strings.Repeat("  ", depth+1)

	buf.WriteString("{")
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
		buf.WriteString(indent)

		keyJSON, err := json.Marshal(key)
		if err != nil {
			return err
		}
		buf.Write(keyJSON)
		buf.WriteString(": ")

		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		raw := values[key]
		switch {
		case isObject(raw):
			if err := mergeObject(buf, raw, path, replacements, depth+1); err != nil {
				return err
			}
		default:
			if value, ok := replacements[path]; ok {
				valueJSON, err := json.Marshal(value)
				if err != nil {
					return err
				}
				buf.Write(valueJSON)
				continue
			}
			var compact bytes.Buffer
			if err := json.Compact(&compact, raw); err != nil {
				return fmt.Errorf("compacting value at %s: %w", path, err)
			}
			buf.Write(compact.Bytes())
		}
	}
	if len(keys) > 0 {
		buf.WriteByte('\n')
		buf.WriteString(strings.Repeat("  ", depth))
	}
	buf.WriteString("}")

	return nil
}
