package adapter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
)

// Storage is the interface for backup snapshot storage
type Storage interface {
	// Put returns a writer to save a snapshot. The snapshot is committed on Close.
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get loads a snapshot
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string) (Storage, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	writer := s.client.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	writer.ContentType = "application/x-ndjson"
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(s.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read from storage",
			goerr.V("bucket", s.bucketName),
			goerr.V("key", key),
		)
	}

	return reader, nil
}

// fileStorage implements Storage interface on a local directory
type fileStorage struct {
	dir string
}

// NewFileStorage stores snapshots as files under dir. Keys are relative paths.
func NewFileStorage(dir string) Storage {
	return &fileStorage{dir: dir}
}

func (s *fileStorage) path(key string) (string, error) {
	if key == "" || filepath.IsAbs(key) || strings.HasPrefix(filepath.Clean(key), "..") {
		return "", goerr.New("invalid snapshot key", goerr.V("key", key))
	}
	return filepath.Join(s.dir, key), nil
}

func (s *fileStorage) Put(_ context.Context, key string) (io.WriteCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return nil, goerr.Wrap(err, "failed to create snapshot directory", goerr.V("path", p))
	}

	f, err := os.Create(filepath.Clean(p))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create snapshot file", goerr.V("path", p))
	}
	return f, nil
}

func (s *fileStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Clean(p))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open snapshot file", goerr.V("path", p))
	}
	return f, nil
}
