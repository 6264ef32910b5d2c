package connector

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/risingwavelabs/risingwave-pipelines/internal/config"
)

var icebergConnectionTemplate = template.Must(template.New("iceberg-connection").Parse(`
CREATE CONNECTION {{ .Name }}
WITH (
    {{ .Options }}
)`[1:]))

var icebergSinkTemplate = template.Must(template.New("iceberg-sink").Parse(`
CREATE SINK {{ .Name }}
FROM {{ .From }}
WITH (
    {{ .Options }}
)`[1:]))

// connectionRoots are the sink parameter families that belong to the
// shared CREATE CONNECTION and are never repeated in per-route sinks.
var connectionRoots = map[string]bool{
	"catalog":   true,
	"warehouse": true,
	"s3":        true,
	"gcs":       true,
	"azblob":    true,
}

// Iceberg is the sink-side handler for the iceberg connector.
type Iceberg struct{}

func (i *Iceberg) Connector() string { return "iceberg" }

func (i *Iceberg) ConnectionName() string { return "iceberg_connection" }

func (i *Iceberg) IsConnectionOption(key string) bool {
	root, _, _ := strings.Cut(key, ".")
	return connectionRoots[root]
}

// BuildConnectionStatement emits the single CREATE CONNECTION shared by
// every route of the job, from the sink's connectivity parameters only.
func (i *Iceberg) BuildConnectionStatement(sink *config.Sink) (Statement, error) {
	props := config.Params{}
	for key, v := range sink.Params {
		if i.IsConnectionOption(key) {
			props[connectionKey(key)] = v
		}
	}

	opts := []Option{{Key: "type", Value: "iceberg"}}
	for _, key := range props.SortedKeys() {
		opts = append(opts, Option{Key: key, Value: props[key]})
	}

	name := i.ConnectionName()
	var buf bytes.Buffer
	err := icebergConnectionTemplate.Execute(&buf, map[string]string{
		"Name":    name,
		"Options": formatOptions(opts),
	})
	if err != nil {
		return Statement{}, err
	}
	return Statement{Kind: KindConnection, Name: name, SQL: buf.String()}, nil
}

// connectionKey rewrites REST catalog keys: oauth2_server_uri and scope
// are catalog-level properties in RisingWave, the rest stay nested.
func connectionKey(key string) string {
	switch key {
	case "catalog.rest.oauth2_server_uri":
		return "catalog.oauth2_server_uri"
	case "catalog.rest.scope":
		return "catalog.scope"
	}
	return key
}

// BuildSinkStatement emits one CREATE SINK referencing the shared
// connection by name. The merged option list is supplied by the compiler
// and emitted in its given order after the fixed header keys.
func (i *Iceberg) BuildSinkStatement(route config.Route, sink *config.Sink, options []Option) (Statement, error) {
	opts := []Option{
		{Key: "connector", Value: "iceberg"},
		{Key: "connection", Value: Identifier(i.ConnectionName())},
		{Key: "database.name", Value: route.SinkDatabase()},
		{Key: "table.name", Value: route.SinkLeaf()},
	}
	opts = append(opts, options...)

	name := route.SinkLeaf() + "_sink"
	var buf bytes.Buffer
	err := icebergSinkTemplate.Execute(&buf, map[string]string{
		"Name":    name,
		"From":    route.SourceLeaf(),
		"Options": formatOptions(opts),
	})
	if err != nil {
		return Statement{}, err
	}
	return Statement{Kind: KindSink, Name: name, SQL: buf.String()}, nil
}
