// Package compiler turns a validated Job into an ordered sequence of DDL
// statements. Compilation is pure and deterministic: identical input
// yields byte-identical output, and the phase order (source, tables,
// connection, sinks) is the visible contract of the statement sequence.
package compiler

import (
	"fmt"

	"github.com/risingwavelabs/risingwave-pipelines/internal/config"
	"github.com/risingwavelabs/risingwave-pipelines/internal/connector"
)

// CompilationError reports a violated internal invariant, such as two
// routes producing the same logical table name. It is a defect in the
// job, not a transient condition.
type CompilationError struct {
	Msg string
}

func (e *CompilationError) Error() string {
	return "compilation failed: " + e.Msg
}

// Compiler generates statements for jobs against a fixed registry.
type Compiler struct {
	registry *connector.Registry
}

// New returns a compiler using the given registry, or the default
// registry when nil.
func New(registry *connector.Registry) *Compiler {
	if registry == nil {
		registry = connector.Default()
	}
	return &Compiler{registry: registry}
}

// Compile produces the full ordered statement sequence for a job:
// one CREATE SOURCE, one CREATE TABLE per route, one shared
// CREATE CONNECTION, then one CREATE SINK per route.
func (c *Compiler) Compile(job *config.Job) ([]connector.Statement, error) {
	src, err := c.registry.Source(job.Source.Connector)
	if err != nil {
		return nil, err
	}
	snk, err := c.registry.Sink(job.Sink.Connector)
	if err != nil {
		return nil, err
	}

	if err := checkTableNames(job.Routes); err != nil {
		return nil, err
	}

	var stmts []connector.Statement

	// Phase 1: the shared CDC source.
	sourceName := src.SourceName(&job.Source)
	sourceStmts, err := src.BuildSourceStatements(&job.Source)
	if err != nil {
		return nil, &CompilationError{Msg: err.Error()}
	}
	stmts = append(stmts, sourceStmts...)

	// Phase 2: one table per route, in route order.
	for _, route := range job.Routes {
		tableStmts, err := src.BuildTableStatements(route, sourceName)
		if err != nil {
			return nil, &CompilationError{Msg: err.Error()}
		}
		stmts = append(stmts, tableStmts...)
	}

	// Phase 3: exactly one connection, however many routes share the sink.
	connStmt, err := snk.BuildConnectionStatement(&job.Sink)
	if err != nil {
		return nil, &CompilationError{Msg: err.Error()}
	}
	stmts = append(stmts, connStmt)

	// Phase 4: one sink per route, in route order.
	for _, route := range job.Routes {
		sinkStmt, err := snk.BuildSinkStatement(route, &job.Sink, sinkOptions(snk, &job.Sink, route))
		if err != nil {
			return nil, &CompilationError{Msg: err.Error()}
		}
		stmts = append(stmts, sinkStmt)
	}

	return stmts, nil
}

// sinkOptions merges sink-level parameters with the route's own fields and
// overrides, route values winning, and fixes the emission order: type,
// primary_key, force_append_only, then remaining keys sorted.
func sinkOptions(h connector.SinkHandler, sink *config.Sink, route config.Route) []connector.Option {
	merged := config.Params{}
	for key, v := range sink.Params {
		if h.IsConnectionOption(key) {
			continue
		}
		merged[key] = v
	}
	for key, v := range route.Options {
		merged[key] = v
	}
	if route.Description != "" {
		merged["description"] = route.Description
	}

	typ := route.Type
	if typ == "" {
		typ = merged.String("type")
	}
	if typ == "" {
		if route.PrimaryKey != "" {
			typ = "upsert"
		} else {
			typ = "append-only"
		}
	}
	delete(merged, "type")

	forceAppendOnly := route.ForceAppendOnly
	if v, ok := merged["force_append_only"]; ok {
		if b, valid := config.CoerceBool(v); valid {
			forceAppendOnly = forceAppendOnly || b
		}
		delete(merged, "force_append_only")
	}
	delete(merged, "primary_key")

	opts := []connector.Option{{Key: "type", Value: typ}}
	if route.PrimaryKey != "" {
		opts = append(opts, connector.Option{Key: "primary_key", Value: route.PrimaryKey})
	}
	// force_append_only only means something on a keyed append-only
	// stream: the route explicitly discards update/delete semantics.
	if forceAppendOnly && typ == "append-only" && route.PrimaryKey != "" {
		opts = append(opts, connector.Option{Key: "force_append_only", Value: true})
	}
	for _, key := range merged.SortedKeys() {
		opts = append(opts, connector.Option{Key: key, Value: merged[key]})
	}
	return opts
}

// checkTableNames rejects routes whose distinct source tables collapse to
// the same logical table name. The same source table routed twice is
// legal.
func checkTableNames(routes []config.Route) error {
	qualified := map[string]string{}
	for _, route := range routes {
		leaf := route.SourceLeaf()
		if prev, ok := qualified[leaf]; ok && prev != route.SourceTable {
			return &CompilationError{
				Msg: fmt.Sprintf("ambiguous table name %q: derived from both %q and %q", leaf, prev, route.SourceTable),
			}
		}
		qualified[leaf] = route.SourceTable
	}
	return nil
}
