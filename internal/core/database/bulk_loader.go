package db

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// Loader inserts rows into a provisioned table in a single transaction.
type Loader struct {
	conn    Conn
	dialect Dialect
	log     *zap.Logger
}

var _ core.BulkLoader = (*Loader)(nil)

func NewLoader(conn Conn, dialect Dialect, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{conn: conn, dialect: dialect, log: log}
}

// LoadChunks writes chunks in sequence order. Every embedding is checked against the
// table's vector width before the transaction opens, so a mismatch writes nothing.
func (l *Loader) LoadChunks(ctx context.Context, table models.TargetTable, chunks []models.Chunk) error {
	rows := make([][]any, 0, len(chunks))
	for _, ch := range chunks {
		row := []any{ch.SequenceNumber, ch.SourceFileName, ch.Text}
		switch {
		case table.HasEmbedding():
			if len(ch.Embedding) != table.VectorDim {
				return core.NewStageError(core.StageLoad, core.ErrBulkLoad,
					fmt.Errorf("chunk %d: embedding has %d dimensions, table %s expects %d",
						ch.SequenceNumber, len(ch.Embedding), table.Name, table.VectorDim))
			}
			vec, err := l.dialect.EncodeVector(ch.Embedding)
			if err != nil {
				return core.NewStageError(core.StageLoad, core.ErrBulkLoad,
					fmt.Errorf("chunk %d: encode embedding: %w", ch.SequenceNumber, err))
			}
			row = append(row, vec)
		case ch.Embedding != nil:
			return core.NewStageError(core.StageLoad, core.ErrBulkLoad,
				fmt.Errorf("chunk %d carries an embedding but table %s has no vector column", ch.SequenceNumber, table.Name))
		}
		rows = append(rows, row)
	}
	return l.insert(ctx, table, rows)
}

// LoadRows writes pre-built rows whose values follow the table's column order.
func (l *Loader) LoadRows(ctx context.Context, table models.TargetTable, rows [][]any) error {
	for i, r := range rows {
		if len(r) != len(table.Columns) {
			return core.NewStageError(core.StageLoad, core.ErrBulkLoad,
				fmt.Errorf("row %d has %d values, table %s has %d columns", i, len(r), table.Name, len(table.Columns)))
		}
	}
	return l.insert(ctx, table, rows)
}

func (l *Loader) insert(ctx context.Context, table models.TargetTable, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	if err := validateTable(table, l.dialect); err != nil {
		return core.NewStageError(core.StageLoad, core.ErrBulkLoad, err)
	}

	tx, err := l.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return core.NewStageError(core.StageLoad, core.ErrBulkLoad, fmt.Errorf("begin tx: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, l.dialect.InsertStatement(table))
	if err != nil {
		_ = tx.Rollback()
		return core.NewStageError(core.StageLoad, core.ErrBulkLoad, fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return core.NewStageError(core.StageLoad, core.ErrBulkLoad, fmt.Errorf("insert row %d: %w", i, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return core.NewStageError(core.StageLoad, core.ErrBulkLoad, fmt.Errorf("commit: %w", err))
	}

	l.log.Info("rows loaded",
		zap.String("table", l.dialect.QualifiedTable(table)),
		zap.Int("rows", len(rows)))
	return nil
}
