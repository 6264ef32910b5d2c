package connector

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/risingwavelabs/risingwave-pipelines/internal/config"
)

var pgSourceTemplate = template.Must(template.New("postgres-source").Parse(`
CREATE SOURCE {{ .Name }}
WITH (
    {{ .Options }}
)
FORMAT PLAIN ENCODE JSON`[1:]))

var pgTableTemplate = template.Must(template.New("postgres-table").Parse(`
CREATE TABLE {{ .Table }} (*)
FROM {{ .Source }}
TABLE '{{ .Qualified }}'`[1:]))

// pgParamOrder fixes source parameter emission: core connectivity fields
// first, then the CDC-specific ones. Anything else follows sorted, so
// output is stable across runs for identical input.
var pgParamOrder = []string{
	"hostname",
	"port",
	"username",
	"password",
	"database.name",
	"schema.name",
	"slot.name",
	"publication.name",
	"publication.create.enable",
}

// Postgres is the source-side handler for the postgres-cdc connector.
type Postgres struct{}

func (p *Postgres) Connector() string { return "postgres" }

// SourceName derives the shared source name from the upstream database,
// e.g. postgres_ecommerce_source.
func (p *Postgres) SourceName(src *config.Source) string {
	return fmt.Sprintf("postgres_%s_source", src.Params.String("database.name"))
}

func (p *Postgres) BuildSourceStatements(src *config.Source) ([]Statement, error) {
	if src.Params.String("database.name") == "" {
		return nil, fmt.Errorf("postgres source requires database.name to derive the source name")
	}

	opts := []Option{{Key: "connector", Value: "postgres-cdc"}}
	emitted := map[string]bool{}
	for _, key := range pgParamOrder {
		if v, ok := src.Params[key]; ok {
			opts = append(opts, Option{Key: key, Value: v})
			emitted[key] = true
		}
	}
	for _, key := range src.Params.SortedKeys() {
		if !emitted[key] {
			opts = append(opts, Option{Key: key, Value: src.Params[key]})
		}
	}

	name := p.SourceName(src)
	var buf bytes.Buffer
	err := pgSourceTemplate.Execute(&buf, map[string]string{
		"Name":    name,
		"Options": formatOptions(opts),
	})
	if err != nil {
		return nil, err
	}
	return []Statement{{Kind: KindSource, Name: name, SQL: buf.String()}}, nil
}

func (p *Postgres) BuildTableStatements(route config.Route, sourceName string) ([]Statement, error) {
	name := route.SourceLeaf()
	var buf bytes.Buffer
	err := pgTableTemplate.Execute(&buf, map[string]string{
		"Table":     name,
		"Source":    sourceName,
		"Qualified": route.SourceTable,
	})
	if err != nil {
		return nil, err
	}
	return []Statement{{Kind: KindTable, Name: name, SQL: buf.String()}}, nil
}
