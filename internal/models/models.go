package models

import (
	"time"
)

// Page is one page-level text unit produced by a document loader.
type Page struct {
	Number int    `json:"number"` // 1-based
	Text   string `json:"text"`
}

// Chunk represents one retrievable text window from a source document.
type Chunk struct {
	SequenceNumber int       `db:"chunk_id" json:"chunk_id"`
	SourceFileName string    `db:"file_name" json:"file_name"`
	Text           string    `db:"text" json:"text"`
	Embedding      []float32 `db:"embedding" json:"embedding,omitempty"` // nil when no embedding stage ran
}

// ColumnType is the logical type of a target table column.
type ColumnType string

const (
	ColumnInteger ColumnType = "integer"
	ColumnString  ColumnType = "string"
	ColumnVector  ColumnType = "vector"
)

// Column describes one column of a target table.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// TargetTable is the persisted destination of one ingestion pipeline.
type TargetTable struct {
	Database  string   `json:"database"`
	Schema    string   `json:"schema"`
	Name      string   `json:"name"`
	Columns   []Column `json:"columns"`
	VectorDim int      `json:"vector_dim,omitempty"` // 0 = no embedding column
}

const (
	ColumnChunkID   = "chunk_id"
	ColumnFileName  = "file_name"
	ColumnText      = "text"
	ColumnEmbedding = "embedding"
)

// NewChunkTable builds the fixed chunk table layout; vectorDim > 0 adds the embedding column.
func NewChunkTable(database, schema, name string, vectorDim int) TargetTable {
	cols := []Column{
		{Name: ColumnChunkID, Type: ColumnInteger},
		{Name: ColumnFileName, Type: ColumnString},
		{Name: ColumnText, Type: ColumnString},
	}
	if vectorDim > 0 {
		cols = append(cols, Column{Name: ColumnEmbedding, Type: ColumnVector})
	}
	return TargetTable{Database: database, Schema: schema, Name: name, Columns: cols, VectorDim: vectorDim}
}

// HasEmbedding reports whether the table declares a vector column.
func (t TargetTable) HasEmbedding() bool {
	return t.VectorDim > 0
}

// ColumnNames returns the column names in declaration order.
func (t TargetTable) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// RetrievalService is a named, queryable index declared over a TargetTable.
type RetrievalService struct {
	Name             string    `json:"name"`
	Database         string    `json:"database"`
	Schema           string    `json:"schema"`
	Warehouse        string    `json:"warehouse"`
	SourceTable      string    `json:"source_table"`
	SearchColumn     string    `json:"search_column"`
	AttributeColumns []string  `json:"attribute_columns"`
	TargetLag        string    `json:"target_lag"`
	VectorIndexed    bool      `json:"vector_indexed,omitempty"`
	DeclaredAt       time.Time `json:"declared_at"`
}

// WorkRecord is one row of the analyst work-record table.
type WorkRecord struct {
	WorkMonth      string `db:"work_month" json:"work_month"`
	EmployeeName   string `db:"employee_name" json:"employee_name"`
	Department     string `db:"department" json:"department"`
	TotalWorkHours int    `db:"total_work_hours" json:"total_work_hours"`
	OvertimeHours  int    `db:"overtime_hours" json:"overtime_hours"`
	WorkReason     string `db:"work_reason" json:"work_reason"`
}

// NewWorkRecordTable builds the analyst table layout.
func NewWorkRecordTable(database, schema, name string) TargetTable {
	return TargetTable{
		Database: database,
		Schema:   schema,
		Name:     name,
		Columns: []Column{
			{Name: "work_month", Type: ColumnString},
			{Name: "employee_name", Type: ColumnString},
			{Name: "department", Type: ColumnString},
			{Name: "total_work_hours", Type: ColumnInteger},
			{Name: "overtime_hours", Type: ColumnInteger},
			{Name: "work_reason", Type: ColumnString},
		},
	}
}

// Values returns the record fields in NewWorkRecordTable column order.
func (r WorkRecord) Values() []any {
	return []any{r.WorkMonth, r.EmployeeName, r.Department, r.TotalWorkHours, r.OvertimeHours, r.WorkReason}
}

// SearchRequest is a query against a declared retrieval service.
type SearchRequest struct {
	Query   string   `json:"query"`
	TopK    int      `json:"top_k"`
	Columns []string `json:"columns,omitempty"`
}

// DefaultTopK is used when a SearchRequest leaves TopK unset.
const DefaultTopK = 5

// SearchHit is one row returned by a retrieval service.
type SearchHit struct {
	ChunkID  int     `json:"chunk_id"`
	FileName string  `json:"file_name"`
	Text     string  `json:"text"`
	Score    float64 `json:"score,omitempty"`
}

// RunStatus tracks a queued preprocessing run.
type RunStatus struct {
	ID        string    `json:"id"`
	Pipeline  string    `json:"pipeline"`
	Status    string    `json:"status"` // queued | running | done | partial | failed
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
