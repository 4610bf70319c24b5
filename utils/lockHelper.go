package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"github.com/bsm/redislock"
)

// WithDocumentLock serializes mutating work on a single document. Concurrent
// edits from two sessions are not reconciled by the engine (last recompute
// wins); the lock only prevents two recomputes from interleaving their
// replace-wholesale writes.
//
// When Redis is not connected the lock degrades to a no-op: single-process
// deployments and tests rely on the per-document DB transaction instead.
func WithDocumentLock(ctx context.Context, businessId string, documentId int, moduleName string, funcName string, fn func() error) error {
	locker := config.GetRedisLock()
	if locker == nil {
		return fn()
	}

	logger := config.GetLogger()
	lockKey := fmt.Sprintf("document:%s:%d", businessId, documentId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, funcName, "Could not obtain document lock", lockKey, err)
		return errors.New("could not obtain lock for document")
	} else if err != nil {
		config.LogError(logger, moduleName, funcName, "Error obtaining document lock", lockKey, err)
		return err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	return fn()
}
