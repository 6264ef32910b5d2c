// Package config holds the typed model of a CDC pipeline job and the
// validation that turns raw YAML into it. A Job is immutable once parsed;
// the compiler never sees a partially validated one.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError reports a missing or malformed field by its dotted path,
// e.g. "sink.connector" or "route[1].source_table".
type ConfigError struct {
	Path string
	Msg  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

// Params is a flattened mapping of connector-specific parameters keyed by
// dotted path (nested YAML mappings collapse into keys like
// "publication.create.enable"). Values keep their YAML scalar types.
type Params map[string]any

// SortedKeys returns the keys in lexicographic order.
func (p Params) SortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the value under key rendered as a plain string, or ""
// when the key is absent.
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Source is the inbound connector definition. Everything beyond Connector
// is accepted opaquely; unknown parameters are the downstream database's
// concern.
type Source struct {
	Connector string
	Params    Params
}

// Sink is the outbound connector definition. Params form the baseline for
// every route's sink statement.
type Sink struct {
	Connector string
	Params    Params
}

// Route maps one source table to one sink table.
type Route struct {
	SourceTable     string
	SinkTable       string
	PrimaryKey      string
	Description     string
	Type            string
	ForceAppendOnly bool

	// Options carries the open-ended per-route sink overrides
	// (create_table_if_not_exists and any ad-hoc keys). Route values win
	// over sink-level values for the same key.
	Options Params
}

// SourceLeaf returns the table part of the schema-qualified source table.
func (r Route) SourceLeaf() string {
	_, leaf, _ := strings.Cut(r.SourceTable, ".")
	return leaf
}

// SinkLeaf returns the table part of the qualified sink table.
func (r Route) SinkLeaf() string {
	i := strings.LastIndex(r.SinkTable, ".")
	return r.SinkTable[i+1:]
}

// SinkDatabase returns everything before the last separator of the
// qualified sink table.
func (r Route) SinkDatabase() string {
	i := strings.LastIndex(r.SinkTable, ".")
	if i < 0 {
		return ""
	}
	return r.SinkTable[:i]
}

// Job is the root entity: one source, one sink, at least one route.
type Job struct {
	Source Source
	Sink   Sink
	Routes []Route
}

// Load reads and parses a job file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job file: %w", err)
	}
	return Parse(data)
}

// Parse validates raw YAML into a Job. All structural problems are
// collected and returned together; no partial Job is ever returned.
func Parse(data []byte) (*Job, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	var problems []error
	job := &Job{}

	job.Source.Connector, job.Source.Params = parseSection(raw, "source", &problems)
	normalizeDatabase(job.Source.Params)

	job.Sink.Connector, job.Sink.Params = parseSection(raw, "sink", &problems)

	job.Routes = parseRoutes(raw, &problems)

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return job, nil
}

// parseSection pulls the connector identifier out of a source/sink mapping
// and flattens the remaining keys into Params.
func parseSection(raw map[string]any, name string, problems *[]error) (string, Params) {
	section, ok := raw[name].(map[string]any)
	if !ok || section == nil {
		*problems = append(*problems, &ConfigError{Path: name, Msg: "missing required section"})
		return "", Params{}
	}

	connector := ""
	if v, ok := section["connector"]; !ok {
		*problems = append(*problems, &ConfigError{Path: name + ".connector", Msg: "missing required field"})
	} else if s, ok := v.(string); !ok || s == "" {
		*problems = append(*problems, &ConfigError{Path: name + ".connector", Msg: "must be a non-empty string"})
	} else {
		connector = s
	}

	params := Params{}
	for k, v := range section {
		if k == "connector" {
			continue
		}
		flattenInto(params, k, v, name, problems)
	}
	return connector, params
}

func parseRoutes(raw map[string]any, problems *[]error) []Route {
	list, ok := raw["route"].([]any)
	if !ok || len(list) == 0 {
		*problems = append(*problems, &ConfigError{Path: "route", Msg: "at least one route is required"})
		return nil
	}

	routes := make([]Route, 0, len(list))
	for i, item := range list {
		ctx := fmt.Sprintf("route[%d]", i)
		entry, ok := item.(map[string]any)
		if !ok {
			*problems = append(*problems, &ConfigError{Path: ctx, Msg: "must be a mapping"})
			continue
		}
		routes = append(routes, parseRoute(entry, ctx, problems))
	}
	return routes
}

func parseRoute(entry map[string]any, ctx string, problems *[]error) Route {
	route := Route{Options: Params{}}

	route.SourceTable = requireString(entry, "source_table", ctx, problems)
	if route.SourceTable != "" && !validSourceTable(route.SourceTable) {
		*problems = append(*problems, &ConfigError{
			Path: ctx + ".source_table",
			Msg:  fmt.Sprintf("%q must be a schema-qualified name like 'schema.table'", route.SourceTable),
		})
	}

	route.SinkTable = requireString(entry, "sink_table", ctx, problems)
	if route.SinkTable != "" && !validSinkTable(route.SinkTable) {
		*problems = append(*problems, &ConfigError{
			Path: ctx + ".sink_table",
			Msg:  fmt.Sprintf("%q must be a qualified name like 'database.table'", route.SinkTable),
		})
	}

	route.PrimaryKey = optionalString(entry, "primary_key", ctx, problems)
	route.Description = optionalString(entry, "description", ctx, problems)

	route.Type = optionalString(entry, "type", ctx, problems)
	if route.Type != "" && route.Type != "upsert" && route.Type != "append-only" {
		*problems = append(*problems, &ConfigError{
			Path: ctx + ".type",
			Msg:  fmt.Sprintf("%q is not a valid sink type (expected \"upsert\" or \"append-only\")", route.Type),
		})
	}

	if v, ok := entry["force_append_only"]; ok {
		b, ok := CoerceBool(v)
		if !ok {
			*problems = append(*problems, &ConfigError{Path: ctx + ".force_append_only", Msg: "must be a boolean"})
		}
		route.ForceAppendOnly = b
	}

	for k, v := range entry {
		switch k {
		case "source_table", "sink_table", "primary_key", "description", "type", "force_append_only":
			continue
		}
		flattenInto(route.Options, k, v, ctx, problems)
	}
	return route
}

// flattenInto collapses nested mappings into dotted keys. Only scalar
// leaves are accepted.
func flattenInto(dst Params, key string, value any, path string, problems *[]error) {
	switch v := value.(type) {
	case map[string]any:
		for k, nested := range v {
			flattenInto(dst, key+"."+k, nested, path, problems)
		}
	case string, bool, int, int64, uint64, float64:
		dst[key] = v
	case nil:
		// Empty YAML values are treated as absent.
	default:
		*problems = append(*problems, &ConfigError{
			Path: path + "." + key,
			Msg:  fmt.Sprintf("unsupported value of type %T", value),
		})
	}
}

// normalizeDatabase rewrites a scalar "database" shorthand to
// "database.name" so both spellings reach the connector identically.
func normalizeDatabase(params Params) {
	if v, ok := params["database"]; ok {
		if _, exists := params["database.name"]; !exists {
			params["database.name"] = v
		}
		delete(params, "database")
	}
}

func requireString(entry map[string]any, key, ctx string, problems *[]error) string {
	v, ok := entry[key]
	if !ok {
		*problems = append(*problems, &ConfigError{Path: ctx + "." + key, Msg: "missing required field"})
		return ""
	}
	s, ok := v.(string)
	if !ok || s == "" {
		*problems = append(*problems, &ConfigError{Path: ctx + "." + key, Msg: "must be a non-empty string"})
		return ""
	}
	return s
}

func optionalString(entry map[string]any, key, ctx string, problems *[]error) string {
	v, ok := entry[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		*problems = append(*problems, &ConfigError{Path: ctx + "." + key, Msg: "must be a string"})
		return ""
	}
	return s
}

// CoerceBool interprets a YAML boolean or a "true"/"false" string,
// case-insensitively. The second result reports whether v was a valid
// boolean at all.
func CoerceBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(x) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

// validSourceTable requires exactly one separator with non-empty parts.
func validSourceTable(name string) bool {
	if strings.Count(name, ".") != 1 {
		return false
	}
	schema, table, _ := strings.Cut(name, ".")
	return schema != "" && table != ""
}

// validSinkTable requires at least one separator; the part after the last
// separator is the table name, everything before it the database.
func validSinkTable(name string) bool {
	i := strings.LastIndex(name, ".")
	return i > 0 && i < len(name)-1
}
