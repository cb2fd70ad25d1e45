package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
)

type ElasticSink struct {
	es    *elasticsearch.Client
	index string
}

func NewElasticClient(url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return client, nil
}

func NewElasticSink(es *elasticsearch.Client, index string) *ElasticSink {
	return &ElasticSink{es: es, index: index}
}

func (s *ElasticSink) Record(ctx context.Context, ev Event) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(ev); err != nil {
		return fmt.Errorf("audit encode: %w", err)
	}

	res, err := s.es.Index(s.index, &buf, s.es.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("audit index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("audit index: %s: %s", res.Status(), body)
	}
	return nil
}
