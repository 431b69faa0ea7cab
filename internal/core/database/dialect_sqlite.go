package db

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/cortexprep/internal/config"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// SQLite targets a single local database file. It has no databases, warehouses or
// schemas, so tables live unqualified and a retrieval service is a plain view.
type SQLite struct{}

func (SQLite) Name() string       { return config.DialectSQLite }
func (SQLite) DriverName() string { return "sqlite" }

func (SQLite) NormalizeIdent(ident string) string { return ident }

func (SQLite) QualifiedTable(t models.TargetTable) string { return t.Name }

func (SQLite) TableExistsQuery(t models.TargetTable) (string, []any) {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND lower(name) = lower(?)", []any{t.Name}
}

func (SQLite) CreateDatabase(string) []string           { return nil }
func (SQLite) CreateWarehouse(WarehouseSpec) []string   { return nil }
func (SQLite) CreateSchema(models.TargetTable) []string { return nil }
func (SQLite) DropTable(t models.TargetTable) string    { return "DROP TABLE IF EXISTS " + t.Name }
func (SQLite) EncodeVector(v []float32) (any, error)    { return vectorBlob(v), nil }
func (SQLite) VersionQuery() string                     { return "SELECT sqlite_version()" }
func (SQLite) EnableAnalystAOAI() []string              { return nil }

func (SQLite) CreateTable(t models.TargetTable) []string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		typ := "TEXT"
		switch c.Type {
		case models.ColumnInteger:
			typ = "INTEGER"
		case models.ColumnVector:
			typ = "BLOB"
		}
		cols[i] = c.Name + " " + typ
	}
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Name, strings.Join(cols, ", "))}
}

func (SQLite) InsertStatement(t models.TargetTable) string {
	names := t.ColumnNames()
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(names, ", "),
		placeholders(len(names), func(int) string { return "?" }))
}

func (SQLite) DeclareService(svc models.RetrievalService, t models.TargetTable) []string {
	return []string{
		"DROP VIEW IF EXISTS " + svc.Name,
		fmt.Sprintf("CREATE VIEW %s AS SELECT %s FROM %s", svc.Name, strings.Join(serviceColumns(svc), ", "), t.Name),
	}
}

// SearchQuery falls back to a substring match; there is no ranking, so hits come back in chunk order.
func (SQLite) SearchQuery(svc models.RetrievalService, req models.SearchRequest) (string, []any, bool) {
	q := fmt.Sprintf(
		`SELECT chunk_id, file_name, text, 0.0 FROM %s WHERE %s LIKE ? ESCAPE '\' ORDER BY chunk_id LIMIT ?`,
		svc.Name, svc.SearchColumn)
	return q, []any{"%" + escapeLike(req.Query) + "%", topK(req)}, false
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
