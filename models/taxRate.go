package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

// TaxRate is the catalog entity referenced by items (modern regime) and by
// document-level tax attachments (legacy regime). Documents snapshot
// name/percent at calculation time, so editing the catalog never rewrites
// history — only the next recompute picks the new values up.
type TaxRate struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id" binding:"required"`
	Name       string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Percent    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"percent" binding:"required"`
	IsDefault  *bool           `gorm:"not null;default:false" json:"is_default"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTaxRate struct {
	Name      string          `json:"name" validate:"required"`
	Percent   decimal.Decimal `json:"percent"`
	IsDefault *bool           `json:"is_default"`
}

func (input *NewTaxRate) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if input.Percent.IsNegative() {
		return utils.ErrorValidationFailed
	}
	return utils.ValidateUnique[TaxRate](ctx, businessId, "name", input.Name, id)
}

func CreateTaxRate(ctx context.Context, input *NewTaxRate) (*TaxRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	taxRate := TaxRate{
		BusinessId: businessId,
		Name:       input.Name,
		Percent:    input.Percent,
		IsDefault:  input.IsDefault,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&taxRate).Error; err != nil {
		return nil, err
	}
	return &taxRate, nil
}

// UpdateTaxRate edits the catalog entry. Persisted document totals are NOT
// touched; the new percent only flows into a document when something else
// triggers its recompute.
func UpdateTaxRate(ctx context.Context, id int, input *NewTaxRate) (*TaxRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if _, err := utils.FetchModel[TaxRate](ctx, businessId, id); err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	updated := TaxRate{ID: id, BusinessId: businessId}
	err := db.WithContext(ctx).Model(&updated).Updates(map[string]interface{}{
		"Name":      input.Name,
		"Percent":   input.Percent,
		"IsDefault": input.IsDefault,
	}).Error
	if err != nil {
		return nil, err
	}

	return utils.FetchModel[TaxRate](ctx, businessId, id)
}

func DeleteTaxRate(ctx context.Context, id int) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return errors.New("business id is required")
	}

	taxRate, err := utils.FetchModel[TaxRate](ctx, businessId, id)
	if err != nil {
		return err
	}

	// Refuse deletion while any item or document attachment still points at
	// the rate; a dangling reference would turn later recomputes into
	// NotFound failures.
	itemCount, err := utils.ResourceCountWhere[DocumentItem](ctx, businessId, "tax_rate_id = ?", id)
	if err != nil {
		return err
	}
	attachmentCount, err := utils.ResourceCountWhere[DocumentTaxRate](ctx, businessId, "tax_rate_id = ?", id)
	if err != nil {
		return err
	}
	if itemCount > 0 || attachmentCount > 0 {
		return utils.ErrorValidationFailed
	}

	db := config.GetDB()
	return db.WithContext(ctx).Delete(taxRate).Error
}

func GetTaxRate(ctx context.Context, id int) (*TaxRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[TaxRate](ctx, businessId, id)
}

func GetAllTaxRates(ctx context.Context) ([]*TaxRate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[TaxRate](ctx, businessId)
}
