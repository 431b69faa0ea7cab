package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/cortexprep/internal/config"
	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// Registrar declares retrieval services with create-or-replace semantics.
type Registrar struct {
	conn    Conn
	dialect Dialect
	log     *zap.Logger
}

var _ core.IndexRegistrar = (*Registrar)(nil)

func NewRegistrar(conn Conn, dialect Dialect, log *zap.Logger) *Registrar {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registrar{conn: conn, dialect: dialect, log: log}
}

// Declare (re)creates svc over table. Redeclaring an existing service replaces it.
func (r *Registrar) Declare(ctx context.Context, svc models.RetrievalService, table models.TargetTable) (*models.RetrievalService, error) {
	if err := validateService(svc); err != nil {
		return nil, core.NewStageError(core.StageRegisterIndex, core.ErrIndexRegistration, err)
	}
	if err := validateTable(table, r.dialect); err != nil {
		return nil, core.NewStageError(core.StageRegisterIndex, core.ErrIndexRegistration, err)
	}
	if svc.Warehouse != "" {
		if err := ValidateIdent("warehouse", svc.Warehouse); err != nil {
			return nil, core.NewStageError(core.StageRegisterIndex, core.ErrIndexRegistration, err)
		}
	}

	for _, stmt := range r.dialect.DeclareService(svc, table) {
		if _, err := r.conn.ExecContext(ctx, stmt); err != nil {
			return nil, core.NewStageError(core.StageRegisterIndex, core.ErrIndexRegistration,
				fmt.Errorf("declare service %s: %w", svc.Name, err))
		}
	}

	out := svc
	out.SourceTable = table.Name
	out.VectorIndexed = table.HasEmbedding() && r.dialect.Name() == config.DialectPostgres
	out.DeclaredAt = time.Now().UTC()

	r.log.Info("retrieval service declared",
		zap.String("service", svc.Name),
		zap.String("table", r.dialect.QualifiedTable(table)),
		zap.String("target_lag", svc.TargetLag))
	return &out, nil
}
