package db

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/markdave123-py/cortexprep/internal/config"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// WarehouseSpec sizes the compute warehouse created during provisioning.
type WarehouseSpec struct {
	Name               string
	Size               string
	AutoSuspendSeconds int
	AutoResume         bool
	InitiallySuspended bool
}

// DefaultWarehouseSpec is the fixed sizing every provisioning run recreates the warehouse with.
func DefaultWarehouseSpec(name string) WarehouseSpec {
	return WarehouseSpec{
		Name:               name,
		Size:               "X-SMALL",
		AutoSuspendSeconds: 120,
		AutoResume:         true,
		InitiallySuspended: true,
	}
}

// Dialect renders the SQL one warehouse backend needs. Statements returned as a
// slice are executed one by one, each committing on its own.
type Dialect interface {
	Name() string
	DriverName() string

	// NormalizeIdent applies the catalog's case convention to an unquoted identifier.
	NormalizeIdent(ident string) string
	QualifiedTable(t models.TargetTable) string

	TableExistsQuery(t models.TargetTable) (query string, args []any)
	CreateDatabase(name string) []string
	CreateWarehouse(spec WarehouseSpec) []string
	CreateSchema(t models.TargetTable) []string
	DropTable(t models.TargetTable) string
	CreateTable(t models.TargetTable) []string

	InsertStatement(t models.TargetTable) string
	EncodeVector(v []float32) (any, error)

	DeclareService(svc models.RetrievalService, t models.TargetTable) []string
	// SearchQuery returns the query for req; jsonPayload means the query yields a
	// single JSON document instead of (chunk_id, file_name, text, score) rows.
	SearchQuery(svc models.RetrievalService, req models.SearchRequest) (query string, args []any, jsonPayload bool)

	VersionQuery() string
	// EnableAnalystAOAI returns the account statements that enable Azure OpenAI
	// models for the analyst, or nil when the backend has no such switch.
	EnableAnalystAOAI() []string
}

// DialectFor returns the dialect registered for name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case config.DialectSnowflake:
		return Snowflake{}, nil
	case config.DialectPostgres:
		return Postgres{}, nil
	case config.DialectSQLite:
		return SQLite{}, nil
	}
	return nil, fmt.Errorf("unknown warehouse dialect %q", name)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ValidateIdent rejects anything that is not a plain unquoted identifier.
// Identifiers are interpolated into DDL, so this is the only barrier against injection.
func ValidateIdent(kind, ident string) error {
	if !identPattern.MatchString(ident) {
		return fmt.Errorf("invalid %s identifier %q", kind, ident)
	}
	return nil
}

func validateTable(t models.TargetTable, d Dialect) error {
	if err := ValidateIdent("table", t.Name); err != nil {
		return err
	}
	if d.Name() == config.DialectSQLite {
		return nil
	}
	if err := ValidateIdent("schema", t.Schema); err != nil {
		return err
	}
	if d.Name() == config.DialectSnowflake {
		return ValidateIdent("database", t.Database)
	}
	return nil
}

func validateService(svc models.RetrievalService) error {
	if err := ValidateIdent("service", svc.Name); err != nil {
		return err
	}
	if err := ValidateIdent("column", svc.SearchColumn); err != nil {
		return err
	}
	for _, c := range svc.AttributeColumns {
		if err := ValidateIdent("column", c); err != nil {
			return err
		}
	}
	return nil
}

// serviceColumns is the projection a service exposes: attributes first, then the searchable column.
func serviceColumns(svc models.RetrievalService) []string {
	cols := make([]string, 0, len(svc.AttributeColumns)+1)
	seen := map[string]bool{}
	for _, c := range append(append([]string{}, svc.AttributeColumns...), svc.SearchColumn) {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		cols = append(cols, c)
	}
	return cols
}

func placeholders(n int, render func(i int) string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = render(i)
	}
	return strings.Join(parts, ", ")
}

func topK(req models.SearchRequest) int {
	if req.TopK <= 0 {
		return models.DefaultTopK
	}
	return req.TopK
}
