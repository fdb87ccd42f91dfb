// internal/common/database/elasticsearch.go
package database

import (
	"context"
	"fmt"

	"rental-process/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchClient serves the tenant and unit search views.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	addrs := cfg.GetAddresses()
	if len(addrs) == 0 {
		return nil, fmt.Errorf("elasticsearch: no addresses configured")
	}
	esCfg := elasticsearch.Config{Addresses: addrs}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es}, nil
}

func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: %s", res.Status())
	}
	return nil
}

// IndicesReady checks that every search index the views query exists.
func (c *ElasticsearchClient) IndicesReady(ctx context.Context, indices ...string) error {
	for _, index := range indices {
		if index == "" {
			continue
		}
		res, err := c.Client.Indices.Exists([]string{index}, c.Client.Indices.Exists.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("elasticsearch index %s: %w", index, err)
		}
		res.Body.Close()
		if res.StatusCode == 404 {
			return fmt.Errorf("elasticsearch index %s missing", index)
		}
		if res.IsError() {
			return fmt.Errorf("elasticsearch index %s: %s", index, res.Status())
		}
	}
	return nil
}
