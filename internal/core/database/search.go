package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

// ServiceSearcher queries a declared retrieval service.
type ServiceSearcher struct {
	conn    Conn
	dialect Dialect
}

var _ core.Searcher = (*ServiceSearcher)(nil)

func NewSearcher(conn Conn, dialect Dialect) *ServiceSearcher {
	return &ServiceSearcher{conn: conn, dialect: dialect}
}

func (s *ServiceSearcher) Search(ctx context.Context, svc models.RetrievalService, req models.SearchRequest) ([]models.SearchHit, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if err := validateService(svc); err != nil {
		return nil, err
	}

	query, args, jsonPayload := s.dialect.SearchQuery(svc, req)
	if jsonPayload {
		var raw string
		if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
			return nil, fmt.Errorf("search %s: %w", svc.Name, err)
		}
		return decodePreview(raw)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", svc.Name, err)
	}
	defer rows.Close()

	var out []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.ChunkID, &h.FileName, &h.Text, &h.Score); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// previewResponse is the JSON document returned by SEARCH_PREVIEW. Column keys come back lower-case.
type previewResponse struct {
	Results []map[string]any `json:"results"`
}

func decodePreview(raw string) ([]models.SearchHit, error) {
	var resp previewResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("decode search preview: %w", err)
	}
	out := make([]models.SearchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		h := models.SearchHit{
			FileName: stringField(r, models.ColumnFileName),
			Text:     stringField(r, models.ColumnText),
		}
		// NUMBER columns are serialised as strings or numbers depending on the service version.
		switch v := r[models.ColumnChunkID].(type) {
		case float64:
			h.ChunkID = int(v)
		case string:
			h.ChunkID, _ = strconv.Atoi(v)
		}
		out = append(out, h)
	}
	return out, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
