package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AzureStore talks to Azure Blob Storage over its REST API using a shared
// access signature.
type AzureStore struct {
	endpoint string
	sas      string
	client   *http.Client
}

// NewAzureStore targets https://<account>.blob.core.windows.net/.
func NewAzureStore(account, sas string) *AzureStore {
	return NewAzureStoreWithEndpoint(fmt.Sprintf("https://%s.blob.core.windows.net/", account), sas, nil)
}

// NewAzureStoreWithEndpoint targets an explicit endpoint, such as an
// emulator. A nil client uses a client with a 60s timeout.
func NewAzureStoreWithEndpoint(endpoint, sas string, client *http.Client) *AzureStore {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &AzureStore{
		endpoint: strings.TrimSuffix(endpoint, "/") + "/",
		sas:      strings.TrimPrefix(sas, "?"),
		client:   client,
	}
}

func (s *AzureStore) blobURL(container, name string) string {
	u := s.endpoint + url.PathEscape(container) + "/" + url.PathEscape(name)
	if s.sas != "" {
		u += "?" + s.sas
	}
	return u
}

func (s *AzureStore) Download(ctx context.Context, container, name string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.blobURL(container, name), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s/%s: %w", container, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s/%s: status %d", container, name, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w", container, name, err)
	}
	return data, nil
}

func (s *AzureStore) Upload(ctx context.Context, container, name string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.blobURL(container, name), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.ContentLength = int64(len(data))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("uploading %s/%s: %w", container, name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("uploading %s/%s: status %d", container, name, resp.StatusCode)
	}
	return nil
}
