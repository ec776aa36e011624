package session

import (
	"time"

	"doclingd/pkg/types"
)

// Snapshot is a read-only view of the session state.
type Snapshot struct {
	State    State
	Err      error
	Progress int
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, Err: s.err, Progress: s.progress}
}

// Status builds a detailed status response for /status.
func (s *Session) Status() types.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := types.StatusResponse{
		State:          string(s.state),
		ModelID:        s.cfg.ModelID,
		Backend:        s.cfg.Backend.String(),
		Precision:      s.cfg.Precision.String(),
		Progress:       s.progress,
		QueueLen:       len(s.queueCh),
		Inflight:       len(s.genCh),
		MaxQueueDepth:  cap(s.queueCh),
		LastRunID:      s.lastRunID,
		RunsTotal:      s.runs,
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	if s.err != nil {
		resp.Error = s.err.Error()
	}
	return resp
}
