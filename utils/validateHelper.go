package utils

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateInput runs struct-tag validation on a New* input and maps failures
// onto the engine's validation error so callers can errors.Is against it.
func ValidateInput(input any) error {
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", ErrorValidationFailed, err)
	}
	return nil
}

// ValidateResourceId checks that an id exists for the model T, scoped by
// business id. Returns ErrorRecordNotFound when missing.
func ValidateResourceId[T any](ctx context.Context, businessId string, id any) error {
	count, err := ResourceCountWhere[T](ctx, businessId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// ResourceCountWhere counts rows of model T matching cond, scoped by business id.
func ResourceCountWhere[T any](ctx context.Context, businessId string, cond string, values ...any) (int64, error) {
	db := config.GetDB()
	var model T
	var count int64
	err := db.WithContext(ctx).Model(&model).
		Where("business_id = ?", businessId).
		Where(cond, values...).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
