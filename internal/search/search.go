// Package search mirrors catalog products into Elasticsearch and runs
// full-text queries against them.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/cactus_shop/internal/models"
)

const DefaultIndex = "products"

type Document struct {
	Kind        models.ProductKind `json:"kind"`
	ID          uint               `json:"id"`
	CategoryID  uint               `json:"category_id"`
	Title       string             `json:"title"`
	Slug        string             `json:"slug"`
	Description string             `json:"description"`
	Price       decimal.Decimal    `json:"price"`
	Attributes  map[string]string  `json:"attributes"`
}

func NewDocument(v models.Variant) Document {
	p := v.Base()
	d := Document{
		Kind:       v.Kind(),
		ID:         p.ID,
		CategoryID: p.CategoryID,
		Title:      p.Title,
		Slug:       p.Slug,
		Price:      p.Price,
		Attributes: v.Attributes(),
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	return d
}

func DocumentID(ref models.ProductRef) string {
	return string(ref.Kind) + "-" + strconv.FormatUint(uint64(ref.ID), 10)
}

type Indexer interface {
	IndexProduct(ctx context.Context, v models.Variant) error
	DeleteProduct(ctx context.Context, ref models.ProductRef) error
	Search(ctx context.Context, query string, from, size int) (int64, []Document, error)
}

// Nop is used when ES_URL is empty. Search always returns nothing.
type Nop struct{}

func (Nop) IndexProduct(context.Context, models.Variant) error { return nil }
func (Nop) DeleteProduct(context.Context, models.ProductRef) error { return nil }
func (Nop) Search(context.Context, string, int, int) (int64, []Document, error) {
	return 0, nil, nil
}

type Elastic struct {
	ES    *elasticsearch.Client
	Index string
}

func NewClient(url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch: info: %s: %s", res.Status(), body)
	}
	return client, nil
}

func NewElastic(es *elasticsearch.Client, index string) *Elastic {
	if index == "" {
		index = DefaultIndex
	}
	return &Elastic{ES: es, Index: index}
}

func (e *Elastic) IndexProduct(ctx context.Context, v models.Variant) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(NewDocument(v)); err != nil {
		return fmt.Errorf("elasticsearch: encode: %w", err)
	}

	res, err := e.ES.Index(
		e.Index,
		&buf,
		e.ES.Index.WithContext(ctx),
		e.ES.Index.WithDocumentID(DocumentID(models.ProductRef{Kind: v.Kind(), ID: v.Base().ID})),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch: index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch: index: %s", res.Status())
	}
	return nil
}

func (e *Elastic) DeleteProduct(ctx context.Context, ref models.ProductRef) error {
	res, err := e.ES.Delete(e.Index, DocumentID(ref), e.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: delete: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("elasticsearch: delete: %s", res.Status())
	}
	return nil
}

func (e *Elastic) Search(ctx context.Context, query string, from, size int) (int64, []Document, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     strings.TrimSpace(query),
				"fields":    []string{"title^2", "description", "attributes.*"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("elasticsearch: encode query: %w", err)
	}

	res, err := e.ES.Search(
		e.ES.Search.WithContext(ctx),
		e.ES.Search.WithIndex(e.Index),
		e.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("elasticsearch: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("elasticsearch: search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("elasticsearch: decode: %w", err)
	}

	docs := make([]Document, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		docs[i] = hit.Source
	}
	return r.Hits.Total.Value, docs, nil
}
