package utils

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/zaraisoft/farmbooks_backend/config"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateInput runs struct-tag validation (`validate:"..."`) over an input model.
func ValidateInput(input any) error {
	if err := validate.Struct(input); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return err
		}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			f := fieldErrs[0]
			return errors.New("invalid input: " + f.Namespace() + " failed on '" + f.Tag() + "'")
		}
		return err
	}
	return nil
}

// check uniqueness of a field under a tenant (excludeId = "" for create)
func ValidateUnique[T any](ctx context.Context, tenantId string, field string, value any, excludeId string) error {
	db := config.GetDB()
	var model T
	dbCtx := db.WithContext(ctx).Model(&model).
		Where("tenant_id = ?", tenantId).
		Where(field+" = ?", value)
	if excludeId != "" {
		dbCtx = dbCtx.Where("id <> ?", excludeId)
	}
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New(field + " already exists")
	}
	return nil
}
