package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/invoicing_backend/config"
	"bitbucket.org/mmdatafocus/invoicing_backend/utils"
	"github.com/shopspring/decimal"
)

type TaskStatus string

const (
	TaskStatusOpen     TaskStatus = "Open"
	TaskStatusDone     TaskStatus = "Done"
	TaskStatusInvoiced TaskStatus = "Invoiced"
)

// Task is billed time tied to a client. Once an item references a task, the
// owning document can no longer be reassigned to another client.
type Task struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"index;not null" json:"business_id" binding:"required"`
	ClientId   int             `gorm:"index;not null" json:"client_id" binding:"required"`
	Name       string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Price      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Status     TaskStatus      `gorm:"type:enum('Open','Done','Invoiced');not null;default:'Open'" json:"status"`
	FinishDate *time.Time      `json:"finish_date"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTask struct {
	ClientId int             `json:"client_id" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
}

func CreateTask(ctx context.Context, input *NewTask) (*Task, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := utils.ValidateInput(input); err != nil {
		return nil, err
	}

	task := Task{
		BusinessId: businessId,
		ClientId:   input.ClientId,
		Name:       input.Name,
		Price:      input.Price,
		Status:     TaskStatusOpen,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func GetTask(ctx context.Context, id int) (*Task, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Task](ctx, businessId, id)
}
