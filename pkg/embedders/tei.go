package embedders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Dhana009/haystack/pkg/config"
	"github.com/Dhana009/haystack/pkg/httpclient"
)

// TEIEmbedder talks to a text-embeddings-inference server. It is the
// default provider for both the documentation and code models.
type TEIEmbedder struct {
	config *config.EmbedderConfig
	client *httpclient.Client
}

type TEIEmbedRequest struct {
	Inputs   string `json:"inputs"`
	Truncate bool   `json:"truncate"`
}

type teiErrorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

func NewTEIEmbedderFromConfig(cfg *config.EmbedderConfig) (*TEIEmbedder, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required for TEI embedder")
	}

	timeout := 60 * time.Second
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	return &TEIEmbedder{
		config: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(maxRetries),
			httpclient.WithHeaderParser(httpclient.ParseStandardHeaders),
		),
	}, nil
}

func (e *TEIEmbedder) Embed(text string) ([]float32, error) {
	return e.EmbedWithContext(context.Background(), text)
}

func (e *TEIEmbedder) EmbedWithContext(ctx context.Context, text string) ([]float32, error) {
	request := TEIEmbedRequest{
		Inputs:   text,
		Truncate: true,
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/embed", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to TEI: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp teiErrorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error != "" {
			return nil, fmt.Errorf("TEI API error: %s (type: %s)", errorResp.Error, errorResp.ErrorType)
		}
		return nil, fmt.Errorf("TEI API returned status %d: %s", resp.StatusCode, string(body))
	}

	// TEI responds with one vector per input, nested even for a
	// single input.
	var embeddings [][]float32
	if err := json.Unmarshal(body, &embeddings); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, fmt.Errorf("received empty embedding from TEI")
	}

	return embeddings[0], nil
}

func (e *TEIEmbedder) GetDimension() int {
	return e.config.Dimension
}

func (e *TEIEmbedder) GetModelName() string {
	return e.config.Model
}

func (e *TEIEmbedder) Warmup(ctx context.Context) error {
	return warmupProbe(ctx, e)
}

func (e *TEIEmbedder) Close() error {
	return nil
}
