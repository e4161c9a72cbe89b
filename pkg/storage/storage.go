// Package storage persists flow status documents as blobs. Azure Blob
// Storage backs deployed instances; an in-memory store backs local runs.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/JaimeStill/postmottak/pkg/lifecycle"
)

// BlobInfo describes one blob in a prefix listing.
type BlobInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
}

// System is a flat key/blob store. Keys are slash separated paths and must
// not contain "..".
type System interface {
	// Start ensures the container exists once the service starts.
	Start(lc *lifecycle.Coordinator) error
	// Ping reports whether the store can be reached.
	Ping(ctx context.Context) error

	// Upload writes the blob at key, replacing any existing blob.
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	// Download opens the blob at key or fails with ErrNotFound. Callers close the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns the blobs under prefix in key order. It never returns nil on success.
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes everything under prefix and reports how many blobs went.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Open returns the store selected by cfg.Provider.
func Open(cfg *Config, logger *slog.Logger) (System, error) {
	if cfg.Provider == ProviderMemory {
		logger.Warn("flow status kept in memory and lost on restart", "system", "storage")
		return NewMemory(), nil
	}
	return New(cfg, logger)
}

type azure struct {
	container *container.Client
	name      string
	logger    *slog.Logger
}

// New builds an Azure Blob store. Nothing is contacted until Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &azure{
		container: client.ServiceClient().NewContainerClient(cfg.ContainerName),
		name:      cfg.ContainerName,
		logger:    logger.With("system", "storage", "container", cfg.ContainerName),
	}, nil
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() {
		_, err := a.container.Create(lc.Context(), nil)
		if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			a.logger.Error("container create failed", "error", err)
			return
		}
		a.logger.Info("container ready")
	})
	return nil
}

func (a *azure) Ping(ctx context.Context) error {
	if _, err := a.container.GetProperties(ctx, nil); err != nil {
		return fmt.Errorf("container %s: %w", a.name, err)
	}
	return nil
}

func (a *azure) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	_, err := a.container.NewBlockBlobClient(key).UploadStream(ctx, r, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (a *azure) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	resp, err := a.container.NewBlobClient(key).DownloadStream(ctx, nil)
	if err != nil {
		return nil, notFound(err, "download "+key)
	}
	return resp.Body, nil
}

func (a *azure) List(ctx context.Context, prefix string) ([]BlobInfo, error) {
	if strings.Contains(prefix, "..") {
		return nil, ErrInvalidKey
	}

	out := []BlobInfo{}
	pager := a.container.NewListBlobsFlatPager(&container.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			info := BlobInfo{Key: *item.Name}
			if p := item.Properties; p != nil {
				info.Size = deref(p.ContentLength)
				info.ContentType = deref(p.ContentType)
				info.LastModified = deref(p.LastModified)
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func (a *azure) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := a.container.NewBlobClient(key).Delete(ctx, nil); err != nil {
		return notFound(err, "delete "+key)
	}
	return nil
}

func (a *azure) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if err := checkKey(prefix); err != nil {
		return 0, err
	}
	items, err := a.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, item := range items {
		switch err := a.Delete(ctx, item.Key); {
		case err == nil:
			removed++
		case !isNotFound(err):
			return removed, err
		}
	}
	return removed, nil
}

func notFound(err error, op string) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func checkKey(key string) error {
	switch {
	case key == "":
		return ErrEmptyKey
	case strings.Contains(key, ".."):
		return ErrInvalidKey
	}
	return nil
}
