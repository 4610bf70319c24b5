package utils

import (
	"context"
	"fmt"
	"reflect"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
)

// FetchModel loads one row of model T by id, scoped by business id.
// Returns ErrorRecordNotFound on any miss.
func FetchModel[T any](ctx context.Context, businessId string, id int, associations ...string) (*T, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// FetchAllModels loads every row of model T for the business.
func FetchAllModels[T any](ctx context.Context, businessId string, associations ...string) ([]*T, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ValidateUnique checks that no other row of T carries the same column value,
// optionally excluding one id (for updates).
func ValidateUnique[T any](ctx context.Context, businessId string, column string, value any, exceptId any) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, businessId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, businessId, column+" = ? AND NOT id = ?", value, exceptId)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: duplicate %s", ErrorValidationFailed, column)
	}
	return nil
}
