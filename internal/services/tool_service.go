package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/markdave123-py/cortexprep/internal/models"
)

// Function tool names served by this API for the agent runtime to call back.
const (
	ToolHTMLCrawl = "html_crawl"
	ToolWeather   = "weather"
)

// ToolService keeps the tool descriptors handed to the agent and serves the function tools.
// A tool registered twice under the same name replaces the earlier descriptor.
type ToolService struct {
	mu    sync.RWMutex
	order []string
	tools map[string]models.Tool

	http *resty.Client
}

func NewToolService() *ToolService {
	return &ToolService{
		tools: make(map[string]models.Tool),
		http:  resty.New().SetTimeout(30 * time.Second),
	}
}

func (s *ToolService) Register(t models.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := t.ToolName()
	if _, ok := s.tools[name]; !ok {
		s.order = append(s.order, name)
	}
	s.tools[name] = t
}

// Tools returns the registered tools in registration order.
func (s *ToolService) Tools() []models.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Tool, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name])
	}
	return out
}

// Select returns the named tools, or every tool when names is empty.
func (s *ToolService) Select(names []string) ([]models.Tool, error) {
	if len(names) == 0 {
		return s.Tools(), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Tool, 0, len(names))
	for _, n := range names {
		t, ok := s.tools[n]
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", n)
		}
		out = append(out, t)
	}
	return out, nil
}

// RegisterFunctionTools adds the crawl and weather tools served under baseURL.
func (s *ToolService) RegisterFunctionTools(baseURL string) {
	baseURL = strings.TrimRight(baseURL, "/")
	s.Register(models.FunctionTool{
		Name:              ToolHTMLCrawl,
		Description:       "reads the html from a given URL or website",
		OutputDescription: "html of a webpage",
		Endpoint:          baseURL + "/api/tools/" + ToolHTMLCrawl,
	})
	s.Register(models.FunctionTool{
		Name:              ToolWeather,
		Description:       "searches the weather for a given location",
		OutputDescription: "weather information description",
		Endpoint:          baseURL + "/api/tools/" + ToolWeather,
	})
}

var errEmptyArgument = errors.New("empty argument")

// HTMLCrawl fetches url and returns the response body.
func (s *ToolService) HTMLCrawl(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("url: %w", errEmptyArgument)
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("url %q must be http or https", url)
	}
	resp, err := s.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("crawl %s: %w", url, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("crawl %s: status %d", url, resp.StatusCode())
	}
	return resp.String(), nil
}

// Weather is a fixed-answer stand-in kept for agent demos.
func (s *ToolService) Weather(location string) (string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", fmt.Errorf("location: %w", errEmptyArgument)
	}
	return location + "の天気は晴れです。", nil
}
