package services

import (
	"context"
	"errors"
	"strings"

	"github.com/markdave123-py/cortexprep/internal/core"
	"github.com/markdave123-py/cortexprep/internal/models"
)

var ErrEmptyQuery = errors.New("search query is empty")

// SearchService queries the retrieval service declared by the search pipeline.
type SearchService struct {
	searcher core.Searcher
	service  models.RetrievalService
}

func NewSearchService(searcher core.Searcher, service models.RetrievalService) *SearchService {
	return &SearchService{searcher: searcher, service: service}
}

func (s *SearchService) Service() models.RetrievalService { return s.service }

func (s *SearchService) Search(ctx context.Context, req models.SearchRequest) ([]models.SearchHit, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	if req.TopK <= 0 {
		req.TopK = models.DefaultTopK
	}
	return s.searcher.Search(ctx, s.service, req)
}
