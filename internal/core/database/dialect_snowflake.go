package db

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/markdave123-py/cortexprep/internal/config"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// Snowflake targets a Snowflake account through gosnowflake. Unquoted identifiers
// are stored upper-case, so catalog lookups compare against upper-cased names.
type Snowflake struct{}

func (Snowflake) Name() string       { return config.DialectSnowflake }
func (Snowflake) DriverName() string { return "snowflake" }

func (Snowflake) NormalizeIdent(ident string) string { return strings.ToUpper(ident) }

func (d Snowflake) QualifiedTable(t models.TargetTable) string {
	return d.qualify(t.Database, t.Schema, t.Name)
}

func (d Snowflake) qualify(parts ...string) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = d.NormalizeIdent(p)
	}
	return strings.Join(out, ".")
}

func (d Snowflake) TableExistsQuery(t models.TargetTable) (string, []any) {
	q := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s.INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?",
		d.NormalizeIdent(t.Database),
	)
	return q, []any{d.NormalizeIdent(t.Schema), d.NormalizeIdent(t.Name)}
}

func (d Snowflake) CreateDatabase(name string) []string {
	return []string{"CREATE DATABASE IF NOT EXISTS " + d.NormalizeIdent(name)}
}

func (d Snowflake) CreateWarehouse(spec WarehouseSpec) []string {
	name := d.NormalizeIdent(spec.Name)
	return []string{
		fmt.Sprintf(
			"CREATE OR REPLACE WAREHOUSE %s WITH WAREHOUSE_SIZE = '%s' AUTO_SUSPEND = %d AUTO_RESUME = %s INITIALLY_SUSPENDED = %s",
			name, spec.Size, spec.AutoSuspendSeconds, sqlBool(spec.AutoResume), sqlBool(spec.InitiallySuspended),
		),
		"USE WAREHOUSE " + name,
	}
}

func (d Snowflake) CreateSchema(t models.TargetTable) []string {
	return []string{"CREATE SCHEMA IF NOT EXISTS " + d.qualify(t.Database, t.Schema)}
}

func (d Snowflake) DropTable(t models.TargetTable) string {
	return "DROP TABLE IF EXISTS " + d.QualifiedTable(t)
}

func (d Snowflake) CreateTable(t models.TargetTable) []string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = d.NormalizeIdent(c.Name) + " " + d.columnType(c.Type, t.VectorDim)
	}
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QualifiedTable(t), strings.Join(cols, ", "))}
}

func (Snowflake) columnType(ct models.ColumnType, dim int) string {
	switch ct {
	case models.ColumnInteger:
		return "NUMBER"
	case models.ColumnVector:
		return fmt.Sprintf("VECTOR(FLOAT, %d)", dim)
	default:
		return "VARCHAR"
	}
}

// InsertStatement uses INSERT ... SELECT when the table has a vector column:
// VECTOR values cannot be bound directly, so the JSON literal is cast server side.
func (d Snowflake) InsertStatement(t models.TargetTable) string {
	names := t.ColumnNames()
	for i := range names {
		names[i] = d.NormalizeIdent(names[i])
	}
	if !t.HasEmbedding() {
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			d.QualifiedTable(t), strings.Join(names, ", "),
			placeholders(len(names), func(int) string { return "?" }))
	}
	sel := placeholders(len(t.Columns), func(i int) string {
		if t.Columns[i].Type == models.ColumnVector {
			return fmt.Sprintf("PARSE_JSON(?)::VECTOR(FLOAT, %d)", t.VectorDim)
		}
		return "?"
	})
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s", d.QualifiedTable(t), strings.Join(names, ", "), sel)
}

func (Snowflake) EncodeVector(v []float32) (any, error) {
	return vectorLiteral(v)
}

func (d Snowflake) DeclareService(svc models.RetrievalService, t models.TargetTable) []string {
	attrs := make([]string, len(svc.AttributeColumns))
	for i, a := range svc.AttributeColumns {
		attrs[i] = d.NormalizeIdent(a)
	}
	proj := serviceColumns(svc)
	for i := range proj {
		proj[i] = d.NormalizeIdent(proj[i])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE OR REPLACE CORTEX SEARCH SERVICE %s\n", d.qualify(svc.Database, svc.Schema, svc.Name))
	fmt.Fprintf(&b, "  ON %s\n", d.NormalizeIdent(svc.SearchColumn))
	if len(attrs) > 0 {
		fmt.Fprintf(&b, "  ATTRIBUTES %s\n", strings.Join(attrs, ", "))
	}
	fmt.Fprintf(&b, "  WAREHOUSE = %s\n", d.NormalizeIdent(svc.Warehouse))
	fmt.Fprintf(&b, "  TARGET_LAG = %s\n", quoteLiteral(svc.TargetLag))
	fmt.Fprintf(&b, "  AS (SELECT %s FROM %s)", strings.Join(proj, ", "), d.QualifiedTable(t))
	return []string{b.String()}
}

// SearchQuery calls SEARCH_PREVIEW, which only accepts literal arguments.
func (d Snowflake) SearchQuery(svc models.RetrievalService, req models.SearchRequest) (string, []any, bool) {
	cols := req.Columns
	if len(cols) == 0 {
		cols = []string{models.ColumnChunkID, models.ColumnFileName, models.ColumnText}
	}
	payload, _ := json.Marshal(map[string]any{
		"query":   req.Query,
		"columns": cols,
		"limit":   topK(req),
	})
	q := fmt.Sprintf("SELECT SNOWFLAKE.CORTEX.SEARCH_PREVIEW(%s, %s)",
		quoteLiteral(d.qualify(svc.Database, svc.Schema, svc.Name)), quoteLiteral(string(payload)))
	return q, nil, true
}

func (Snowflake) VersionQuery() string { return "SELECT CURRENT_VERSION()" }

func (Snowflake) EnableAnalystAOAI() []string {
	return []string{
		"USE ROLE ACCOUNTADMIN",
		"ALTER ACCOUNT SET ENABLE_CORTEX_ANALYST_MODEL_AZURE_OPENAI = TRUE",
	}
}

// quoteLiteral renders s as a single-quoted Snowflake string literal.
func quoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `''`)
	return "'" + s + "'"
}

func sqlBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
