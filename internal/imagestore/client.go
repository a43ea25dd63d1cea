package imagestore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
)

// Client wraps the hosted image store. Remote ids returned by Upload are the
// storage object paths and are the only handle for deleting an image later.
type Client struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewClient(supabaseURL, serviceKey, bucket string) (*Client, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceKey, nil)

	return &Client{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// Upload reads a local file and stores it under folder in the bucket.
// The object path gets a UUID prefix so repeated filenames never collide.
func (c *Client) Upload(localPath, folder string) (string, string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read file %s: %w", localPath, err)
	}

	remoteID := fmt.Sprintf("%s/%s_%s", folder, uuid.New().String(), filepath.Base(localPath))

	contentType := contentTypeFor(localPath)
	upsert := false
	_, err = c.client.UploadFile(c.bucket, remoteID, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload file: %w", err)
	}

	publicURL := fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, remoteID)

	return publicURL, remoteID, nil
}

func (c *Client) Delete(remoteID string) error {
	if _, err := c.client.RemoveFile(c.bucket, []string{remoteID}); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", remoteID, err)
	}
	return nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
