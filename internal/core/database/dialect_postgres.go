package db

import (
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/cortexprep/internal/config"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// Postgres targets a Postgres database with the pgvector extension. The database
// is the one named in DATABASE_URL and there is no warehouse; a retrieval service
// is a view plus full-text and vector indexes on the source table.
type Postgres struct{}

func (Postgres) Name() string       { return config.DialectPostgres }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) NormalizeIdent(ident string) string { return strings.ToLower(ident) }

func (d Postgres) QualifiedTable(t models.TargetTable) string {
	return d.NormalizeIdent(t.Schema) + "." + d.NormalizeIdent(t.Name)
}

func (d Postgres) TableExistsQuery(t models.TargetTable) (string, []any) {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2",
		[]any{d.NormalizeIdent(t.Schema), d.NormalizeIdent(t.Name)}
}

func (Postgres) CreateDatabase(string) []string         { return nil }
func (Postgres) CreateWarehouse(WarehouseSpec) []string { return nil }

func (d Postgres) CreateSchema(t models.TargetTable) []string {
	return []string{"CREATE SCHEMA IF NOT EXISTS " + d.NormalizeIdent(t.Schema)}
}

// DropTable cascades to the service view, which is redeclared after every load.
func (d Postgres) DropTable(t models.TargetTable) string {
	return "DROP TABLE IF EXISTS " + d.QualifiedTable(t) + " CASCADE"
}

func (d Postgres) CreateTable(t models.TargetTable) []string {
	var stmts []string
	if t.HasEmbedding() {
		stmts = append(stmts, "CREATE EXTENSION IF NOT EXISTS vector")
	}
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = d.NormalizeIdent(c.Name) + " " + d.columnType(c.Type, t.VectorDim)
	}
	stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.QualifiedTable(t), strings.Join(cols, ", ")))
	return stmts
}

func (Postgres) columnType(ct models.ColumnType, dim int) string {
	switch ct {
	case models.ColumnInteger:
		return "BIGINT"
	case models.ColumnVector:
		return fmt.Sprintf("vector(%d)", dim)
	default:
		return "TEXT"
	}
}

func (d Postgres) InsertStatement(t models.TargetTable) string {
	names := t.ColumnNames()
	for i := range names {
		names[i] = d.NormalizeIdent(names[i])
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QualifiedTable(t), strings.Join(names, ", "),
		placeholders(len(names), func(i int) string { return fmt.Sprintf("$%d", i+1) }))
}

func (Postgres) EncodeVector(v []float32) (any, error) {
	return pgvector.NewVector(v), nil
}

func (d Postgres) DeclareService(svc models.RetrievalService, t models.TargetTable) []string {
	proj := serviceColumns(svc)
	for i := range proj {
		proj[i] = d.NormalizeIdent(proj[i])
	}
	name := d.NormalizeIdent(svc.Name)
	view := d.NormalizeIdent(svc.Schema) + "." + name
	search := d.NormalizeIdent(svc.SearchColumn)

	stmts := []string{
		fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT %s FROM %s", view, strings.Join(proj, ", "), d.QualifiedTable(t)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_fts_idx ON %s USING gin (to_tsvector('simple', %s))",
			name, d.QualifiedTable(t), search),
	}
	if t.HasEmbedding() {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_hnsw_idx ON %s USING hnsw (%s vector_cosine_ops)",
			name, d.QualifiedTable(t), models.ColumnEmbedding))
	}
	return stmts
}

func (d Postgres) SearchQuery(svc models.RetrievalService, req models.SearchRequest) (string, []any, bool) {
	view := d.NormalizeIdent(svc.Schema) + "." + d.NormalizeIdent(svc.Name)
	search := d.NormalizeIdent(svc.SearchColumn)
	q := fmt.Sprintf(`
		SELECT chunk_id, file_name, text,
		       ts_rank(to_tsvector('simple', %[1]s), plainto_tsquery('simple', $1)) AS score
		FROM %[2]s
		WHERE to_tsvector('simple', %[1]s) @@ plainto_tsquery('simple', $1)
		ORDER BY score DESC, chunk_id ASC
		LIMIT $2`, search, view)
	return q, []any{req.Query, topK(req)}, false
}

func (Postgres) VersionQuery() string { return "SELECT version()" }

func (Postgres) EnableAnalystAOAI() []string { return nil }
