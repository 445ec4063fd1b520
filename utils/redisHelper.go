package utils

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/zaraisoft/farmbooks_backend/config"
)

var mutex sync.Mutex

func GetTypeName[T any]() string {
	var v T
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// GetSequence hands out the next per-tenant sequence number for T.
// Redis keeps the hot counter; the database max(sequence_no) seeds it after a
// cold start. The uniqueness re-check closes the gap when the counter lags.
func GetSequence[T any](ctx context.Context, tenantId string) (int64, error) {
	var model T
	mutex.Lock()
	defer mutex.Unlock()
	cacheKey := tenantId + "-" + strings.ToLower(GetTypeName[T]()) + "_seq"
	var seqNo int64
	var err error
	db := config.GetDB()

	for {
		seqNo, err = config.GetRedisCounter(ctx, cacheKey)
		if err != nil {
			return 0, err
		}
		// if not found in redis (or redis unavailable), get from db
		if seqNo <= 1 {
			var dbSeq *int64
			if err := db.WithContext(ctx).Model(&model).Select("max(sequence_no)").
				Where("tenant_id = ?", tenantId).
				Scan(&dbSeq).Error; err != nil {
				return 0, err
			}
			if dbSeq == nil {
				seqNo = 0
			} else {
				seqNo = *dbSeq
			}
			seqNo++
			if err := config.SetRedisObject(cacheKey, &seqNo, 0); err != nil {
				return 0, err
			}
		}
		// check if sequence number exists in db
		err = ValidateUnique[T](ctx, tenantId, "sequence_no", seqNo, "")
		if err == nil {
			break
		}
	}
	return seqNo, nil
}

// ObtainTenantLock takes a short-lived distributed lock scoped to one tenant
// and operation kind. Used by period close and correction batches so only one
// instance runs them at a time.
func ObtainTenantLock(ctx context.Context, logger *logrus.Logger, lockType string, tenantId string) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		// Redis not connected (single-instance/dev); the MySQL posting lock
		// still serializes writers.
		return nil, nil
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, tenantId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, "redisHelper.go", "ObtainTenantLock", "Could not obtain lock for tenant", tenantId, err)
		return nil, errors.New("could not obtain lock for tenant")
	} else if err != nil {
		config.LogError(logger, "redisHelper.go", "ObtainTenantLock", "Error obtaining lock for tenant", tenantId, err)
		return nil, err
	}
	return lock, nil
}

func ReleaseTenantLock(ctx context.Context, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	_ = lock.Release(ctx)
}
