// Package search provides full-text task search using Bleve.
//
// The index is a lookaside collaborator: task name and details are
// indexed on every mutation and queries return matching task IDs for
// the lifecycle engine to resolve against the store of record. Losing
// the index loses nothing but search, it can be rebuilt from tasks.
package search

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/vinayprograms/leasekit/errors"
)

// Index is a full-text index over tasks.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

// Config configures a task search index.
type Config struct {
	// Path is the directory for the index. Empty means in-memory.
	Path string
}

// TaskDocument is the indexed shape of a task.
type TaskDocument struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Details   string    `json:"details"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// New opens or creates a task search index.
func New(cfg Config) (*Index, error) {
	if cfg.Path == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, errors.Wrap(err, "creating in-memory search index")
		}
		return &Index{index: idx}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, errors.Wrap(err, "creating search index directory")
	}

	var idx bleve.Index
	var err error
	if _, statErr := os.Stat(cfg.Path); os.IsNotExist(statErr) {
		idx, err = bleve.New(cfg.Path, buildIndexMapping())
	} else {
		idx, err = bleve.Open(cfg.Path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "opening search index")
	}

	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	taskMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name

	keywordFieldMapping := bleve.NewKeywordFieldMapping()

	dateFieldMapping := bleve.NewDateTimeFieldMapping()

	taskMapping.AddFieldMappingsAt("name", textFieldMapping)
	taskMapping.AddFieldMappingsAt("details", textFieldMapping)
	taskMapping.AddFieldMappingsAt("status", keywordFieldMapping)
	taskMapping.AddFieldMappingsAt("created_at", dateFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = taskMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Index adds or replaces a task in the index.
func (i *Index) Index(doc TaskDocument) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.index.Index(doc.ID, doc); err != nil {
		return errors.Wrap(err, "indexing task", errors.WithTaskID(doc.ID))
	}
	return nil
}

// Remove deletes a task from the index. Removing an unknown ID is not
// an error.
func (i *Index) Remove(taskID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.index.Delete(taskID); err != nil {
		return errors.Wrap(err, "removing task from index", errors.WithTaskID(taskID))
	}
	return nil
}

// Query returns the IDs of tasks matching a full-text query over name
// and details, best match first.
func (i *Index) Query(q string, limit int) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if q == "" {
		return nil, errors.InvalidInput("search query is required")
	}
	if limit <= 0 {
		limit = 25
	}

	matchQuery := bleve.NewMatchQuery(q)
	searchReq := bleve.NewSearchRequest(matchQuery)
	searchReq.Size = limit

	result, err := i.index.Search(searchReq)
	if err != nil {
		return nil, errors.Wrap(err, "searching tasks")
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close closes the underlying index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}
