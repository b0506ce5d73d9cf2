// Package search keeps an in-memory full-text index over the paper cards.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/papers"
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Source provides the papers to index
type Source interface {
	All(ctx context.Context) ([]papers.DatedPaper, error)
}

// Index wraps a memory-only Bleve index that is rebuilt wholesale
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

// IndexedPaper is the document stored for each paper
type IndexedPaper struct {
	ID         string
	Date       string
	TitleEN    string
	TitleZH    string
	AbstractEN string
	AbstractZH string
	Tags       []string
	Category   string
}

// Result is one search hit
type Result struct {
	ID        string
	Date      string
	Title     string
	Score     float64
	Fragments map[string][]string // Highlighted snippets
}

// NewIndex creates an empty index
func NewIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: idx}, nil
}

// buildIndexMapping analyzes text with the English stemmer, which is also
// the analyzer applied to queries against the composite field. Ids and tags
// are indexed as single keywords.
func buildIndexMapping() mapping.IndexMapping {
	english := bleve.NewTextFieldMapping()
	english.Analyzer = "en"

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"

	plain := bleve.NewTextFieldMapping()
	plain.Analyzer = "standard"

	stored := bleve.NewTextFieldMapping()
	stored.Index = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("ID", keyword)
	doc.AddFieldMappingsAt("Date", stored)
	doc.AddFieldMappingsAt("TitleEN", english)
	doc.AddFieldMappingsAt("AbstractEN", english)
	doc.AddFieldMappingsAt("TitleZH", plain)
	doc.AddFieldMappingsAt("AbstractZH", plain)
	doc.AddFieldMappingsAt("Tags", keyword)
	doc.AddFieldMappingsAt("Category", plain)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultMapping = doc
	return indexMapping
}

// Close closes the index
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

// Rebuild indexes every paper from src into a fresh index and swaps it in.
// A paper present on several days is indexed once, from its newest day.
func (i *Index) Rebuild(ctx context.Context, src Source) (uint64, error) {
	all, err := src.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("list papers: %w", err)
	}

	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return 0, fmt.Errorf("create index: %w", err)
	}

	batch := fresh.NewBatch()
	for _, dp := range all {
		if dp.Paper.ID == "" {
			continue
		}
		doc := &IndexedPaper{
			ID:         dp.Paper.ID,
			Date:       dp.Date,
			TitleEN:    dp.Paper.TitleEN,
			TitleZH:    dp.Paper.TitleZH,
			AbstractEN: dp.Paper.AbstractEN,
			AbstractZH: dp.Paper.AbstractZH,
			Tags:       dp.Paper.Tags,
			Category:   dp.Paper.Category,
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			_ = fresh.Close()
			return 0, fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}
	if err := fresh.Batch(batch); err != nil {
		_ = fresh.Close()
		return 0, fmt.Errorf("commit batch: %w", err)
	}

	count, err := fresh.DocCount()
	if err != nil {
		_ = fresh.Close()
		return 0, err
	}

	i.mu.Lock()
	old := i.index
	i.index = fresh
	i.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	logging.FromContext(ctx).WithField("documents", count).Info("Search index rebuilt")
	return count, nil
}

// Search runs a query-string search. Queries the parser rejects fall back to
// a plain match query.
func (i *Index) Search(queryStr string, limit int) ([]*Result, error) {
	queryStr = strings.TrimSpace(queryStr)
	if queryStr == "" {
		return []*Result{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	results, err := i.run(bleve.NewQueryStringQuery(queryStr), limit)
	if err != nil {
		results, err = i.run(bleve.NewMatchQuery(queryStr), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return results, nil
}

func (i *Index) run(q query.Query, limit int) ([]*Result, error) {
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Fields = []string{"Date", "TitleEN"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := &Result{ID: hit.ID, Score: hit.Score, Fragments: hit.Fragments}
		if date, ok := hit.Fields["Date"].(string); ok {
			r.Date = date
		}
		if title, ok := hit.Fields["TitleEN"].(string); ok {
			r.Title = title
		}
		out = append(out, r)
	}
	return out, nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}
