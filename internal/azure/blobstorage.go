package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/projectdiscovery/gologger"
)

// BlobStorageClient wraps Azure Blob Storage operations
type BlobStorageClient struct {
	client        *azblob.Client
	containerName string
}

// NewBlobStorageClient creates a new Blob Storage client
func NewBlobStorageClient(connectionString, containerName string) (*BlobStorageClient, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob storage client: %w", err)
	}

	return &BlobStorageClient{
		client:        client,
		containerName: containerName,
	}, nil
}

// ContainerName returns the container the client writes to
func (b *BlobStorageClient) ContainerName() string {
	return b.containerName
}

// Upload stores data under blobName, replacing any existing blob
func (b *BlobStorageClient) Upload(ctx context.Context, blobName string, data []byte) error {
	_, err := b.client.UploadBuffer(ctx, b.containerName, blobName, data, &azblob.UploadBufferOptions{})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", blobName, err)
	}

	gologger.Debug().Msgf("Stored blob: %s/%s", b.containerName, blobName)
	return nil
}

// Download returns the content of blobName and whether it exists
func (b *BlobStorageClient) Download(ctx context.Context, blobName string) ([]byte, bool, error) {
	response, err := b.client.DownloadStream(ctx, b.containerName, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to download blob %s: %w", blobName, err)
	}
	defer response.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, response.Body); err != nil {
		return nil, false, fmt.Errorf("failed to read blob %s: %w", blobName, err)
	}

	return buf.Bytes(), true, nil
}

// List returns the names of all blobs under prefix
func (b *BlobStorageClient) List(ctx context.Context, prefix string) ([]string, error) {
	var blobNames []string

	pager := b.client.NewListBlobsFlatPager(b.containerName, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}

		for _, blob := range page.Segment.BlobItems {
			blobNames = append(blobNames, *blob.Name)
		}
	}

	return blobNames, nil
}

// Delete removes blobName. A missing blob is not an error.
func (b *BlobStorageClient) Delete(ctx context.Context, blobName string) error {
	_, err := b.client.DeleteBlob(ctx, b.containerName, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete blob %s: %w", blobName, err)
	}

	gologger.Debug().Msgf("Deleted blob: %s/%s", b.containerName, blobName)
	return nil
}
