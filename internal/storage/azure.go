package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"statcube/internal/domain"
)

// Compile-time check.
var _ domain.BlobStore = (*AzureStore)(nil)

// AzureStore stores buffers in an Azure Blob Storage container under
// datasets/<datasetID>/<filename>. Only account-key authentication is
// supported.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// AzureConfig holds shared-key credentials for Azure Blob Storage.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	Container   string
}

// NewAzureStore creates an Azure-backed blob store.
func NewAzureStore(cfg AzureConfig) (*AzureStore, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" || cfg.Container == "" {
		return nil, fmt.Errorf("azure config is incomplete")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}

	return &AzureStore{client: client, container: cfg.Container}, nil
}

// LoadBuffer reads the stored bytes for a key.
func (s *AzureStore) LoadBuffer(ctx context.Context, datasetID, filename string) ([]byte, error) {
	rc, err := s.LoadStream(ctx, datasetID, filename)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.ErrTransientStorage(err, "read azure blob %s: %v", s3Key(datasetID, filename), err)
	}
	return data, nil
}

// SaveBuffer writes bytes for a key.
func (s *AzureStore) SaveBuffer(ctx context.Context, datasetID, filename string, data []byte) error {
	_, err := s.client.UploadBuffer(ctx, s.container, s3Key(datasetID, filename), data, nil)
	if err != nil {
		return mapAzureError(err, datasetID, filename)
	}
	return nil
}

// Delete removes the stored bytes for a key.
func (s *AzureStore) Delete(ctx context.Context, datasetID, filename string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, s3Key(datasetID, filename), nil)
	if err != nil {
		return mapAzureError(err, datasetID, filename)
	}
	return nil
}

// LoadStream opens the stored bytes for streaming reads.
func (s *AzureStore) LoadStream(ctx context.Context, datasetID, filename string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s3Key(datasetID, filename), nil)
	if err != nil {
		return nil, mapAzureError(err, datasetID, filename)
	}
	return resp.Body, nil
}

func mapAzureError(err error, datasetID, filename string) error {
	if strings.Contains(err.Error(), "BlobNotFound") || strings.Contains(err.Error(), "404") {
		return domain.ErrNotFound("file %q not found for dataset %q", filename, datasetID)
	}
	return domain.ErrTransientStorage(err, "azure %s: %v", s3Key(datasetID, filename), err)
}
