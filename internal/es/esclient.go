package es

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/sundarv/curryleaf/internal/config"
)

func NewClient(cfg *config.Config) (*elasticsearch.Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.ES_URL},
		Username:  cfg.ES_USER,
		Password:  cfg.ES_PASSWORD,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to reach Elasticsearch at %s: %w", cfg.ES_URL, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch error: %s: %s", res.Status(), body)
	}

	return client, nil
}

// menuIndexMapping keeps title/description/category as analyzed text for the
// fuzzy multi_match, and leaves the rest untouched for the result payload.
const menuIndexMapping = `{
	"mappings": {
		"properties": {
			"id":          {"type": "long"},
			"title":       {"type": "text"},
			"description": {"type": "text"},
			"category":    {"type": "text"},
			"price":       {"type": "double"},
			"available":   {"type": "boolean"},
			"image_url":   {"type": "keyword", "index": false}
		}
	}
}`

// EnsureMenuIndex creates the menu index with its mapping when it does not
// exist yet. Existing indexes are left alone.
func EnsureMenuIndex(client *elasticsearch.Client, index string) error {
	if client == nil {
		return nil
	}

	res, err := client.Indices.Exists([]string{index})
	if err != nil {
		return fmt.Errorf("check index %s: %w", index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: %s", index, res.Status())
	}

	created, err := client.Indices.Create(index,
		client.Indices.Create.WithBody(strings.NewReader(menuIndexMapping)))
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	defer created.Body.Close()

	if created.IsError() {
		body, _ := io.ReadAll(created.Body)
		return fmt.Errorf("create index %s: %s: %s", index, created.Status(), body)
	}
	return nil
}
