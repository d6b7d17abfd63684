package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/mfenderov/duyuru-watch/pkg/models"
)

const backendElasticsearch = "elasticsearch"

// ElasticsearchConfig holds Elasticsearch store configuration.
type ElasticsearchConfig struct {
	Addresses  []string
	Index      string
	Username   string
	Password   string
	DocumentID string
}

// Elasticsearch stores the snapshot as a single document. Indexing a
// document with a fixed id replaces it atomically.
type Elasticsearch struct {
	es    *elasticsearch.Client
	index string
	docID string
}

// NewElasticsearch creates an Elasticsearch store.
func NewElasticsearch(config ElasticsearchConfig) (*Elasticsearch, error) {
	if config.Index == "" || config.DocumentID == "" {
		return nil, fmt.Errorf("index and document id are required")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Elasticsearch{es: es, index: config.Index, docID: config.DocumentID}, nil
}

// Ping checks if Elasticsearch is available.
func (e *Elasticsearch) Ping(ctx context.Context) bool {
	res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// The list is stored, never searched.
var indexMapping = `{
	"mappings": {
		"properties": {
			"items": { "type": "object", "enabled": false },
			"checked_at": { "type": "date" }
		}
	}
}`

// CreateIndex creates the index with its mapping if it does not exist.
func (e *Elasticsearch) CreateIndex(ctx context.Context) error {
	res, err := e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = e.es.Indices.Create(
		e.index,
		e.es.Indices.Create.WithContext(ctx),
		e.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}
	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (e *Elasticsearch) DeleteIndex(ctx context.Context) error {
	res, err := e.es.Indices.Delete([]string{e.index}, e.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

type getResponse struct {
	Found  bool            `json:"found"`
	Source json.RawMessage `json:"_source"`
}

func (e *Elasticsearch) Load(ctx context.Context) (models.Snapshot, error) {
	res, err := e.es.Get(e.index, e.docID, e.es.Get.WithContext(ctx))
	if err != nil {
		return models.Snapshot{}, &StoreError{Op: "load", Backend: backendElasticsearch, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return models.Snapshot{}, nil
	}
	if res.IsError() {
		return models.Snapshot{}, &StoreError{Op: "load", Backend: backendElasticsearch, Err: fmt.Errorf("get error: %s", res.String())}
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return models.Snapshot{}, &StoreError{Op: "load", Backend: backendElasticsearch, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if !gr.Found {
		return models.Snapshot{}, nil
	}

	snap, err := decodeDocument(gr.Source)
	if err != nil {
		return models.Snapshot{}, &StoreError{Op: "load", Backend: backendElasticsearch, Err: err}
	}
	return snap, nil
}

func (e *Elasticsearch) Save(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(newDocument(snap))
	if err != nil {
		return &StoreError{Op: "save", Backend: backendElasticsearch, Err: fmt.Errorf("failed to marshal snapshot: %w", err)}
	}

	res, err := e.es.Index(
		e.index,
		bytes.NewReader(data),
		e.es.Index.WithContext(ctx),
		e.es.Index.WithDocumentID(e.docID),
		e.es.Index.WithRefresh("true"),
	)
	if err != nil {
		return &StoreError{Op: "save", Backend: backendElasticsearch, Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return &StoreError{Op: "save", Backend: backendElasticsearch, Err: fmt.Errorf("error indexing snapshot (status %d): %s", res.StatusCode, res.String())}
	}
	return nil
}

func (e *Elasticsearch) Reset(ctx context.Context) error {
	res, err := e.es.Delete(e.index, e.docID, e.es.Delete.WithContext(ctx), e.es.Delete.WithRefresh("true"))
	if err != nil {
		return &StoreError{Op: "reset", Backend: backendElasticsearch, Err: err}
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return &StoreError{Op: "reset", Backend: backendElasticsearch, Err: fmt.Errorf("delete error: %s", res.String())}
	}
	return nil
}

func (e *Elasticsearch) Close() error {
	return nil
}
