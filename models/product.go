package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

// Product supplies default price and tax rate to items that reference it.
// Item rows copy the values at save time; later product edits do not touch
// existing items.
type Product struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"index;not null" json:"business_id" binding:"required"`
	Sku         string          `gorm:"size:100" json:"sku"`
	Name        string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Description string          `gorm:"size:255;default:null" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	TaxRateId   int             `gorm:"default:null" json:"tax_rate_id"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Sku         string          `json:"sku"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	TaxRateId   int             `json:"tax_rate_id"`
}

func (input *NewProduct) validate(ctx context.Context, businessId string) error {
	if err := utils.ValidateInput(input); err != nil {
		return err
	}
	if input.Price.IsNegative() {
		return utils.ErrorValidationFailed
	}
	if input.TaxRateId > 0 {
		if err := utils.ValidateResourceId[TaxRate](ctx, businessId, input.TaxRateId); err != nil {
			return err
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	product := Product{
		BusinessId:  businessId,
		Sku:         input.Sku,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		TaxRateId:   input.TaxRateId,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if _, err := utils.FetchModel[Product](ctx, businessId, id); err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	updated := Product{ID: id, BusinessId: businessId}
	err := db.WithContext(ctx).Model(&updated).Updates(map[string]interface{}{
		"Sku":         input.Sku,
		"Name":        input.Name,
		"Description": input.Description,
		"Price":       input.Price,
		"TaxRateId":   input.TaxRateId,
	}).Error
	if err != nil {
		return nil, err
	}

	return utils.FetchModel[Product](ctx, businessId, id)
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Product](ctx, businessId, id)
}
