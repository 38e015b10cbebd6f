package models

import (
	"errors"
	"time"

	"github.com/mmdatafocus/recount_backend/utils"
	"gorm.io/gorm"
)

// Warehouse is keyed by its ERP code. Only the import reconciler writes
// warehouses; they are never deleted.
type Warehouse struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:32;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertWarehouse creates the warehouse or refreshes its name.
// A duplicate-key race on create means another import already achieved the
// desired effect, so it is treated as success.
func UpsertWarehouse(tx *gorm.DB, code string, name string) (*Warehouse, error) {
	var warehouse Warehouse
	err := tx.Where("code = ?", code).First(&warehouse).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		warehouse = Warehouse{Code: code, Name: name}
		if createErr := tx.Create(&warehouse).Error; createErr != nil {
			if !utils.IsDuplicateKeyErr(createErr) {
				return nil, createErr
			}
			if err := tx.Where("code = ?", code).First(&warehouse).Error; err != nil {
				return nil, err
			}
		} else {
			return &warehouse, nil
		}
	} else if err != nil {
		return nil, err
	}

	if warehouse.Name != name && name != "" {
		if err := tx.Model(&warehouse).Update("name", name).Error; err != nil {
			return nil, err
		}
	}
	return &warehouse, nil
}

func GetWarehouseByCode(tx *gorm.DB, code string) (*Warehouse, error) {
	var warehouse Warehouse
	if err := tx.Where("code = ?", code).First(&warehouse).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("warehouse %s not found", code)
		}
		return nil, err
	}
	return &warehouse, nil
}
