package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/restausimplon/api/internal/config"
	"github.com/restausimplon/api/internal/models"
)

const ProductIndex = "product"

// NewClient connects to Elasticsearch and verifies the cluster responds.
func NewClient(cfg *config.Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ES_URL},
		Username:  cfg.ES_USER,
		Password:  cfg.ES_PASSWORD,
	})
	if err != nil {
		return nil, fmt.Errorf("es: new client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("es: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("es: info: %s", res.Status())
	}
	return client, nil
}

type productDoc struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Category    models.Category `json:"category"`
	Description string          `json:"description"`
	UnitPrice   float64         `json:"unit_price"`
}

// IndexProduct upserts the product document. A nil client is a no-op so
// the API works without a search backend.
func IndexProduct(ctx context.Context, es *elasticsearch.Client, index string, p models.Product) error {
	if es == nil {
		return nil
	}
	doc := productDoc{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		UnitPrice: p.UnitPrice,
	}
	if p.Description != nil {
		doc.Description = *p.Description
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	res, err := es.Index(index, bytes.NewReader(body),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("es: index product %d: %w", p.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("es: index product %d: %s", p.ID, res.Status())
	}
	return nil
}

func DeleteProduct(ctx context.Context, es *elasticsearch.Client, index string, id uint) error {
	if es == nil {
		return nil
	}
	res, err := es.Delete(index, strconv.FormatUint(uint64(id), 10), es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es: delete product %d: %w", id, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("es: delete product %d: %s", id, res.Status())
	}
	return nil
}

type Results struct {
	Total int64        `json:"total"`
	Items []productDoc `json:"items"`
}

// Search runs a fuzzy multi_match over name, description and category.
func Search(ctx context.Context, es *elasticsearch.Client, index, q string, from, size int) (*Results, error) {
	query := map[string]any{
		"from": from,
		"size": size,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     q,
				"fields":    []string{"name^3", "description", "category"},
				"fuzziness": "AUTO",
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("es: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("es: search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source productDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("es: decode response: %w", err)
	}

	out := &Results{Total: parsed.Hits.Total.Value, Items: make([]productDoc, 0, len(parsed.Hits.Hits))}
	for _, h := range parsed.Hits.Hits {
		out.Items = append(out.Items, h.Source)
	}
	return out, nil
}
