// Package connector maps connector identifiers to handlers that produce
// the source-side and sink-side DDL fragments for their connector family.
// The registry is built once at startup and never mutated afterwards; new
// families are added by registering another handler under a new identifier.
package connector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/risingwavelabs/risingwave-pipelines/internal/config"
)

// Kind labels the compilation phase a statement belongs to.
type Kind string

const (
	KindSource     Kind = "source"
	KindTable      Kind = "table"
	KindConnection Kind = "connection"
	KindSink       Kind = "sink"
)

// Statement is one generated DDL statement, without the terminator.
type Statement struct {
	Kind Kind
	Name string
	SQL  string
}

// Option is one key/value pair of a WITH clause. Emission order is the
// slice order, so option lists are an explicit, testable contract.
type Option struct {
	Key   string
	Value any
}

// Identifier marks a value that must be emitted without quotes, such as a
// connection name referenced from a sink.
type Identifier string

// Role distinguishes which side of the pipeline requested a connector.
type Role string

const (
	RoleSource Role = "source"
	RoleSink   Role = "sink"
)

// UnknownConnectorError is returned when a connector identifier is not
// registered, or is registered but cannot serve the requested role.
type UnknownConnectorError struct {
	Connector string
	Role      Role
}

func (e *UnknownConnectorError) Error() string {
	return fmt.Sprintf("unsupported %s connector type: %q", e.Role, e.Connector)
}

// Handler is the base capability every registered connector provides.
type Handler interface {
	Connector() string
}

// SourceHandler builds the inbound half of a pipeline: one CREATE SOURCE
// plus one CREATE TABLE per route.
type SourceHandler interface {
	Handler
	SourceName(src *config.Source) string
	BuildSourceStatements(src *config.Source) ([]Statement, error)
	BuildTableStatements(route config.Route, sourceName string) ([]Statement, error)
}

// SinkHandler builds the outbound half: one shared CREATE CONNECTION plus
// one CREATE SINK per route. IsConnectionOption reports whether a sink
// parameter belongs to the connection and must not be repeated per sink.
type SinkHandler interface {
	Handler
	ConnectionName() string
	IsConnectionOption(key string) bool
	BuildConnectionStatement(sink *config.Sink) (Statement, error)
	BuildSinkStatement(route config.Route, sink *config.Sink, options []Option) (Statement, error)
}

// Registry is the lookup table from connector identifier to handler.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register adds a handler under its connector identifier.
func (r *Registry) Register(h Handler) {
	r.handlers[h.Connector()] = h
}

// Source resolves a connector for the source role.
func (r *Registry) Source(name string) (SourceHandler, error) {
	if h, ok := r.handlers[name].(SourceHandler); ok {
		return h, nil
	}
	return nil, &UnknownConnectorError{Connector: name, Role: RoleSource}
}

// Sink resolves a connector for the sink role.
func (r *Registry) Sink(name string) (SinkHandler, error) {
	if h, ok := r.handlers[name].(SinkHandler); ok {
		return h, nil
	}
	return nil, &UnknownConnectorError{Connector: name, Role: RoleSink}
}

// Default returns a registry with the built-in connector families.
func Default() *Registry {
	r := NewRegistry()
	r.Register(&Postgres{})
	r.Register(&Iceberg{})
	return r
}

// formatValue renders an option value for the WITH clause: strings are
// single-quoted, integers bare, booleans the quoted lower-case literal,
// identifiers unquoted.
func formatValue(v any) string {
	switch x := v.(type) {
	case Identifier:
		return string(x)
	case string:
		return "'" + x + "'"
	case bool:
		if x {
			return "'true'"
		}
		return "'false'"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprintf("'%v'", v)
	}
}

// formatOptions joins options into the indented body of a WITH clause.
func formatOptions(opts []Option) string {
	lines := make([]string, len(opts))
	for i, o := range opts {
		lines[i] = fmt.Sprintf("%s = %s", o.Key, formatValue(o.Value))
	}
	return strings.Join(lines, ",\n    ")
}
