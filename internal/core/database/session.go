package db

import (
	"context"
	"database/sql"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// Session is a run-scoped warehouse connection. Every component handed out by a
// Session executes on the same underlying connection.
type Session struct {
	conn   *sql.Conn
	client *DatabaseClient
}

var (
	_ core.WarehouseSession = (*Session)(nil)
	_ core.Warehouse        = (*DatabaseClient)(nil)
)

// OpenSession acquires a dedicated connection for one run.
func (c *DatabaseClient) OpenSession(ctx context.Context) (core.WarehouseSession, error) {
	conn, err := c.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{conn: conn, client: c}, nil
}

func (s *Session) Provisioner(table models.TargetTable) core.SchemaProvisioner {
	return NewProvisioner(s.conn, s.client.dialect, table, s.client.warehouse, s.client.log)
}

func (s *Session) Loader() core.BulkLoader {
	return NewLoader(s.conn, s.client.dialect, s.client.log)
}

func (s *Session) Registrar() core.IndexRegistrar {
	return NewRegistrar(s.conn, s.client.dialect, s.client.log)
}

func (s *Session) Searcher() core.Searcher {
	return NewSearcher(s.conn, s.client.dialect)
}

func (s *Session) EnableAnalystAOAI(ctx context.Context) error {
	return EnableAnalystAOAI(ctx, s.conn, s.client.dialect)
}

func (s *Session) Close() error {
	return s.conn.Close()
}
