package httpapi

import (
	"context"

	"doclingd/internal/assets"
	"doclingd/internal/registry"
	"doclingd/internal/session"
	"doclingd/internal/stream"
	"doclingd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	Ready() bool
	EnsureReady(ctx context.Context, progress assets.ProgressSink) error
	Transcribe(ctx context.Context, image []byte, instruction string, sink stream.Sink) (string, error)
}

// SessionService serves the API from a single model session and the local
// snapshot cache.
type SessionService struct {
	Session  *session.Session
	Scanner  *registry.SnapshotScanner
	CacheDir string
}

var _ Service = (*SessionService)(nil)

// ListModels returns the cached snapshots. Scan failures yield an empty list.
func (s *SessionService) ListModels() []types.Model {
	if s.Scanner == nil {
		return []types.Model{}
	}
	models, err := s.Scanner.Scan(s.CacheDir)
	if err != nil {
		zlog.Warn().Err(err).Str("cache_dir", s.CacheDir).Msg("scan models")
		return []types.Model{}
	}
	if models == nil {
		return []types.Model{}
	}
	return models
}

func (s *SessionService) Status() types.StatusResponse { return s.Session.Status() }

func (s *SessionService) Ready() bool { return s.Session.Ready() }

// EnsureReady retries a failed session.
func (s *SessionService) EnsureReady(ctx context.Context, progress assets.ProgressSink) error {
	return s.Session.EnsureReadyProgress(ctx, progress)
}

func (s *SessionService) Transcribe(ctx context.Context, image []byte, instruction string, sink stream.Sink) (string, error) {
	return s.Session.RunBytes(ctx, image, instruction, sink)
}
