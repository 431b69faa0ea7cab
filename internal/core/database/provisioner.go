package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// Provisioner creates the database, warehouse, schema and target table of one pipeline.
type Provisioner struct {
	conn      Conn
	dialect   Dialect
	table     models.TargetTable
	warehouse WarehouseSpec
	log       *zap.Logger
}

var _ core.SchemaProvisioner = (*Provisioner)(nil)

func NewProvisioner(conn Conn, dialect Dialect, table models.TargetTable, warehouse WarehouseSpec, log *zap.Logger) *Provisioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{conn: conn, dialect: dialect, table: table, warehouse: warehouse, log: log}
}

// TableExists looks the table up in the catalog. A failed lookup is logged and
// reported as absent so the run falls through to provisioning.
func (p *Provisioner) TableExists(ctx context.Context) (bool, error) {
	if err := validateTable(p.table, p.dialect); err != nil {
		return false, core.NewStageError(core.StageCheckExists, core.ErrProvision, err)
	}
	query, args := p.dialect.TableExistsQuery(p.table)

	var n int
	if err := p.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		if ctx.Err() != nil {
			return false, core.NewStageError(core.StageCheckExists, core.ErrProvision, fmt.Errorf("%w: %v", ctx.Err(), err))
		}
		p.log.Warn("table existence check failed, treating as absent",
			zap.String("table", p.dialect.QualifiedTable(p.table)), zap.Error(err))
		return false, nil
	}
	return n > 0, nil
}

// Provision runs every creation step in order. The table is dropped and recreated,
// the warehouse is replaced, the database and schema are created only if missing.
func (p *Provisioner) Provision(ctx context.Context) error {
	if err := validateTable(p.table, p.dialect); err != nil {
		return core.NewStageError(core.StageProvision, core.ErrProvision, err)
	}
	if p.warehouse.Name != "" {
		if err := ValidateIdent("warehouse", p.warehouse.Name); err != nil {
			return core.NewStageError(core.StageProvision, core.ErrProvision, err)
		}
	}

	steps := []struct {
		name  string
		stmts []string
	}{
		{"database", p.dialect.CreateDatabase(p.table.Database)},
		{"warehouse", p.warehouseStmts()},
		{"schema", p.dialect.CreateSchema(p.table)},
		{"drop table", []string{p.dialect.DropTable(p.table)}},
		{"table", p.dialect.CreateTable(p.table)},
	}

	for _, step := range steps {
		for _, stmt := range step.stmts {
			if _, err := p.conn.ExecContext(ctx, stmt); err != nil {
				return core.NewStageError(core.StageProvision, core.ErrProvision,
					fmt.Errorf("create %s: %w", step.name, err))
			}
		}
		if len(step.stmts) > 0 {
			p.log.Debug("provision step done", zap.String("step", step.name))
		}
	}

	p.log.Info("table provisioned",
		zap.String("dialect", p.dialect.Name()),
		zap.String("table", p.dialect.QualifiedTable(p.table)),
		zap.Int("vector_dim", p.table.VectorDim))
	return nil
}

func (p *Provisioner) warehouseStmts() []string {
	if p.warehouse.Name == "" {
		return nil
	}
	return p.dialect.CreateWarehouse(p.warehouse)
}

// EnsureReady provisions only when the table is absent and reports whether it did.
func (p *Provisioner) EnsureReady(ctx context.Context) (bool, error) {
	exists, err := p.TableExists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		p.log.Info("table already exists, skipping provisioning",
			zap.String("table", p.dialect.QualifiedTable(p.table)))
		return false, nil
	}
	if err := p.Provision(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Drop removes the target table, leaving database, warehouse and schema in place.
func (p *Provisioner) Drop(ctx context.Context) error {
	if err := validateTable(p.table, p.dialect); err != nil {
		return core.NewStageError(core.StageProvision, core.ErrProvision, err)
	}
	if _, err := p.conn.ExecContext(ctx, p.dialect.DropTable(p.table)); err != nil {
		return core.NewStageError(core.StageProvision, core.ErrProvision, fmt.Errorf("drop table: %w", err))
	}
	p.log.Info("table dropped", zap.String("table", p.dialect.QualifiedTable(p.table)))
	return nil
}

// EnableAnalystAOAI switches on Azure OpenAI models for the analyst at account level.
// Only Snowflake has this switch; other dialects return ErrUnsupportedByDialect.
func EnableAnalystAOAI(ctx context.Context, conn Conn, dialect Dialect) error {
	stmts := dialect.EnableAnalystAOAI()
	if len(stmts) == 0 {
		return fmt.Errorf("enable analyst azure openai on %s: %w", dialect.Name(), core.ErrUnsupportedByDialect)
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return core.NewStageError(core.StageProvision, core.ErrProvision, fmt.Errorf("enable analyst azure openai: %w", err))
		}
	}
	return nil
}
