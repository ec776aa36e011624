package session

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot.
// Returns a release func to be deferred.
func (s *Session) beginGeneration(ctx context.Context) (func(), error) {
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(s.cfg.MaxWait)
	defer timer.Stop()
	select {
	case s.queueCh <- struct{}{}:
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{modelID: s.cfg.ModelID}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-s.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(s.cfg.MaxWait)
	defer timer2.Stop()
	select {
	case s.genCh <- struct{}{}:
		acquired = true
		return func() { <-s.genCh; <-s.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		return func() {}, tooBusyError{modelID: s.cfg.ModelID}
	}
}
