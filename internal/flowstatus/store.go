package flowstatus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JaimeStill/postmottak/pkg/storage"
)

const keySuffix = "-flowstatus.json"

// Namespaces are the key prefixes flows are stored under.
type Namespaces struct {
	InProgress string
	Failed     string
}

// Store persists flows as JSON blobs keyed by
// {namespace}/{type}/{messageId}-flowstatus.json.
type Store struct {
	blobs      storage.System
	namespaces Namespaces
	logger     *slog.Logger
}

func NewStore(blobs storage.System, namespaces Namespaces, logger *slog.Logger) *Store {
	return &Store{
		blobs:      blobs,
		namespaces: namespaces,
		logger:     logger.With("system", "flowstatus"),
	}
}

func (s *Store) Namespaces() Namespaces { return s.namespaces }

// Key builds the blob key for a flow. The message id is path escaped since
// transport ids may contain slashes.
func Key(namespace, emailType, messageID string) string {
	return fmt.Sprintf("%s/%s/%s%s", namespace, emailType, url.PathEscape(messageID), keySuffix)
}

// Namespace resolves a namespace name to its configured prefix.
func (s *Store) Namespace(name string) (string, error) {
	switch name {
	case "", "in-progress", s.namespaces.InProgress:
		return s.namespaces.InProgress, nil
	case "failed", s.namespaces.Failed:
		return s.namespaces.Failed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidNamespace, name)
	}
}

// SaveInProgress uploads f under the in-progress namespace, overwriting any prior copy.
func (s *Store) SaveInProgress(ctx context.Context, f *FlowStatus) error {
	return s.save(ctx, s.namespaces.InProgress, f)
}

// SaveFailed uploads f under the failed namespace.
func (s *Store) SaveFailed(ctx context.Context, f *FlowStatus) error {
	return s.save(ctx, s.namespaces.Failed, f)
}

func (s *Store) save(ctx context.Context, namespace string, f *FlowStatus) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode flow status: %w", err)
	}

	key := Key(namespace, f.Type, f.Message.ID)
	if err := s.blobs.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	s.logger.DebugContext(ctx, "flow status saved", "key", key, "run_count", f.RunCount)
	return nil
}

// DeleteInProgress removes the in-progress copy of f. A missing blob is not an error.
func (s *Store) DeleteInProgress(ctx context.Context, f *FlowStatus) error {
	key := Key(s.namespaces.InProgress, f.Type, f.Message.ID)
	n, err := s.blobs.DeletePrefix(ctx, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "flow status deleted", "key", key)
	}
	return nil
}

// Get downloads and decodes the flow at key.
func (s *Store) Get(ctx context.Context, key string) (*FlowStatus, error) {
	if !strings.HasSuffix(key, keySuffix) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	rc, err := s.blobs.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	var f FlowStatus
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &f, nil
}

// List returns the blobs stored under namespace.
func (s *Store) List(ctx context.Context, namespace string) ([]storage.BlobInfo, error) {
	blobs, err := s.blobs.List(ctx, namespace+"/")
	if err != nil {
		return nil, err
	}

	flows := make([]storage.BlobInfo, 0, len(blobs))
	for _, b := range blobs {
		if strings.HasSuffix(b.Key, keySuffix) {
			flows = append(flows, b)
		}
	}
	return flows, nil
}

// LoadInProgress loads every in-progress flow keyed by message id. Blobs that
// fail to decode are logged and skipped so one bad entry does not stall the cycle.
func (s *Store) LoadInProgress(ctx context.Context) (map[string]*FlowStatus, error) {
	blobs, err := s.List(ctx, s.namespaces.InProgress)
	if err != nil {
		return nil, fmt.Errorf("list in-progress flows: %w", err)
	}

	flows := make(map[string]*FlowStatus, len(blobs))
	for _, b := range blobs {
		f, err := s.Get(ctx, b.Key)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping unreadable flow status", "key", b.Key, "error", err)
			continue
		}
		if prior, ok := flows[f.Message.ID]; ok {
			s.logger.WarnContext(ctx, "duplicate flow status for message",
				"message_id", f.Message.ID,
				"kept", prior.Type,
				"ignored", f.Type,
			)
			continue
		}
		flows[f.Message.ID] = f
	}
	return flows, nil
}
