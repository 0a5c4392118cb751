package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoshitsuguKoike/procrunner/internal/application/port/output"
)

func TestS3SourceStorage_Read(t *testing.T) {
	mockClient := NewMockS3Client()
	mockClient.PutObject("imports/divisions/a.json", []byte(`[{"code":"UA"}]`))
	storage := NewS3SourceStorageWithClient(mockClient, "test-bucket", "/imports/")

	ctx := context.Background()

	data, err := storage.Read(ctx, "divisions/a.json")
	require.NoError(t, err)
	assert.Equal(t, `[{"code":"UA"}]`, string(data))

	_, err = storage.Read(ctx, "divisions/missing.json")
	assert.ErrorIs(t, err, output.ErrSourceNotFound)
	assert.Contains(t, err.Error(), "s3://test-bucket/imports/divisions/missing.json")
}

func TestS3SourceStorage_ReadTransportError(t *testing.T) {
	mockClient := NewMockS3Client()
	mockClient.GetErr = errors.New("connection reset")
	storage := NewS3SourceStorageWithClient(mockClient, "test-bucket", "")

	_, err := storage.Read(context.Background(), "a.json")
	require.Error(t, err)
	assert.NotErrorIs(t, err, output.ErrSourceNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestS3SourceStorage_ListPaginates(t *testing.T) {
	mockClient := NewMockS3Client()
	for _, key := range []string{
		"imports/divisions/c.json",
		"imports/divisions/a.json",
		"imports/divisions/b.json",
		"imports/divisions/",
		"imports/zones/z.json",
		"elsewhere/x.json",
	} {
		mockClient.PutObject(key, []byte(`[]`))
	}
	storage := NewS3SourceStorageWithClient(mockClient, "test-bucket", "imports").WithPageSize(2)

	files, err := storage.List(context.Background(), "divisions")
	require.NoError(t, err)
	assert.Equal(t, []string{"divisions/a.json", "divisions/b.json", "divisions/c.json"}, files)
	// 4 keys under the prefix (one is a folder marker) at 2 per page
	assert.Equal(t, 2, mockClient.ListCalls())
}

func TestS3SourceStorage_ListWithoutPrefix(t *testing.T) {
	mockClient := NewMockS3Client()
	mockClient.PutObject("a.json", []byte(`[]`))
	mockClient.PutObject("dir/b.json", []byte(`[]`))
	storage := NewS3SourceStorageWithClient(mockClient, "test-bucket", "")

	files, err := storage.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "dir/b.json"}, files)
}

func TestNewS3SourceStorage_RequiresBucket(t *testing.T) {
	_, err := NewS3SourceStorage(context.Background(), S3Config{})
	assert.Error(t, err)
}
