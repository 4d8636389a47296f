package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rvallee/meteo-collector/internal/collect"
)

// CustomAPISink forwards the raw collection document to a downstream API
// authenticated with a bearer key.
type CustomAPISink struct {
	url    string
	apiKey string
	client *http.Client
}

func NewCustomAPISink(client *http.Client, url, apiKey string) *CustomAPISink {
	return &CustomAPISink{url: url, apiKey: apiKey, client: client}
}

func (s *CustomAPISink) Name() string {
	return "custom_api"
}

func (s *CustomAPISink) Save(ctx context.Context, doc *collect.CollectionDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("custom api returned status %d", resp.StatusCode)
	}
	return nil
}
