package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const basicJob = `
source:
  connector: postgres
  hostname: localhost
  port: 5432
  username: rw_user
  password: secret
  database:
    name: ecommerce
  schema:
    name: public
sink:
  connector: iceberg
  warehouse:
    path: s3://data-lake/
  catalog:
    type: hive
route:
  - source_table: public.orders
    sink_table: iceberg_db.orders
    primary_key: id
`

func TestParseBasicJob(t *testing.T) {
	job, err := Parse([]byte(basicJob))
	require.NoError(t, err)

	assert.Equal(t, "postgres", job.Source.Connector)
	assert.Equal(t, "iceberg", job.Sink.Connector)
	assert.Equal(t, "localhost", job.Source.Params["hostname"])
	assert.Equal(t, 5432, job.Source.Params["port"])

	require.Len(t, job.Routes, 1)
	route := job.Routes[0]
	assert.Equal(t, "public.orders", route.SourceTable)
	assert.Equal(t, "iceberg_db.orders", route.SinkTable)
	assert.Equal(t, "id", route.PrimaryKey)
	assert.Empty(t, route.Type)
}

func TestParseFlattensNestedParams(t *testing.T) {
	job, err := Parse([]byte(`
source:
  connector: postgres
  database:
    name: app
  publication:
    name: rw_pub
    create:
      enable: true
sink:
  connector: iceberg
  catalog:
    rest:
      uri: http://rest:8181
route:
  - source_table: public.users
    sink_table: lake.users
`))
	require.NoError(t, err)

	assert.Equal(t, "rw_pub", job.Source.Params["publication.name"])
	assert.Equal(t, true, job.Source.Params["publication.create.enable"])
	assert.Equal(t, "http://rest:8181", job.Sink.Params["catalog.rest.uri"])
}

func TestParseNormalizesScalarDatabase(t *testing.T) {
	job, err := Parse([]byte(`
source:
  connector: postgres
  database: ecommerce
sink:
  connector: iceberg
route:
  - source_table: public.orders
    sink_table: lake.orders
`))
	require.NoError(t, err)
	assert.Equal(t, "ecommerce", job.Source.Params["database.name"])
	assert.NotContains(t, job.Source.Params, "database")
}

func TestParseRouteOverrides(t *testing.T) {
	job, err := Parse([]byte(`
source:
  connector: postgres
  database.name: app
sink:
  connector: iceberg
  commit_retry_num: 3
route:
  - source_table: public.orders
    sink_table: lake.orders
    type: append-only
    force_append_only: 'true'
    create_table_if_not_exists: true
    commit_checkpoint_interval: 10
`))
	require.NoError(t, err)

	route := job.Routes[0]
	assert.Equal(t, "append-only", route.Type)
	assert.True(t, route.ForceAppendOnly)
	assert.Equal(t, true, route.Options["create_table_if_not_exists"])
	assert.Equal(t, 10, route.Options["commit_checkpoint_interval"])
}

func TestCoerceBool(t *testing.T) {
	for _, v := range []any{true, "true", "True", "TRUE"} {
		b, ok := CoerceBool(v)
		assert.True(t, ok, "%v", v)
		assert.True(t, b, "%v", v)
	}
	for _, v := range []any{false, "false", "False", "FALSE"} {
		b, ok := CoerceBool(v)
		assert.True(t, ok, "%v", v)
		assert.False(t, b, "%v", v)
	}
	_, ok := CoerceBool("yes")
	assert.False(t, ok)
	_, ok = CoerceBool(1)
	assert.False(t, ok)
}

func TestParseRouteForceAppendOnlySpellings(t *testing.T) {
	job, err := Parse([]byte(`
source:
  connector: postgres
sink:
  connector: iceberg
route:
  - source_table: public.orders
    sink_table: lake.orders
    force_append_only: 'True'
`))
	require.NoError(t, err)
	assert.True(t, job.Routes[0].ForceAppendOnly)
}

func TestParseMissingSinkConnector(t *testing.T) {
	_, err := Parse([]byte(`
source:
  connector: postgres
sink:
  warehouse:
    path: s3://lake/
route:
  - source_table: public.orders
    sink_table: lake.orders
`))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "sink.connector", cfgErr.Path)
}

func TestParseMissingSections(t *testing.T) {
	_, err := Parse([]byte(`route: []`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source: missing required section")
	assert.Contains(t, err.Error(), "sink: missing required section")
	assert.Contains(t, err.Error(), "route: at least one route is required")
}

func TestParseRejectsMalformedSourceTable(t *testing.T) {
	for _, name := range []string{"orders", "public.orders.extra", ".orders", "public."} {
		_, err := Parse([]byte(`
source:
  connector: postgres
sink:
  connector: iceberg
route:
  - source_table: "` + name + `"
    sink_table: lake.orders
`))
		require.Error(t, err, "source_table %q should be rejected", name)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "route[0].source_table", cfgErr.Path)
	}
}

func TestParseRejectsUnqualifiedSinkTable(t *testing.T) {
	_, err := Parse([]byte(`
source:
  connector: postgres
sink:
  connector: iceberg
route:
  - source_table: public.orders
    sink_table: orders
`))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "route[0].sink_table", cfgErr.Path)
}

func TestParseRejectsUnknownRouteType(t *testing.T) {
	_, err := Parse([]byte(`
source:
  connector: postgres
sink:
  connector: iceberg
route:
  - source_table: public.a
    sink_table: lake.a
  - source_table: public.b
    sink_table: lake.b
    type: replace
`))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "route[1].type", cfgErr.Path)
}

func TestParseAllowsDuplicateSourceTables(t *testing.T) {
	job, err := Parse([]byte(`
source:
  connector: postgres
sink:
  connector: iceberg
route:
  - source_table: public.orders
    sink_table: lake.orders_upsert
    primary_key: id
  - source_table: public.orders
    sink_table: lake.orders_log
`))
	require.NoError(t, err)
	require.Len(t, job.Routes, 2)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("source: [unclosed"))
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.False(t, errors.As(err, &cfgErr))
}

func TestRouteNameDerivation(t *testing.T) {
	route := Route{SourceTable: "public.orders", SinkTable: "warehouse.sales.orders"}
	assert.Equal(t, "orders", route.SourceLeaf())
	assert.Equal(t, "orders", route.SinkLeaf())
	assert.Equal(t, "warehouse.sales", route.SinkDatabase())
}

func TestParamsSortedKeys(t *testing.T) {
	p := Params{"b": 1, "a": 2, "a.c": 3}
	assert.Equal(t, []string{"a", "a.c", "b"}, p.SortedKeys())
}
