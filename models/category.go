package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/shop_backend/config"
	"github.com/mmdatafocus/shop_backend/utils"
	"gorm.io/gorm"
)

type Category struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"index;size:100;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCategory struct {
	Name string `json:"name" validate:"required,max=100"`
}

type SubCategory struct {
	ID         int       `gorm:"primary_key" json:"id"`
	CategoryId int       `gorm:"index;not null" json:"category_id"`
	Name       string    `gorm:"index;size:100;not null" json:"name"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSubCategory struct {
	CategoryId int    `json:"category_id" validate:"required"`
	Name       string `json:"name" validate:"required,max=100"`
}

func (input *NewCategory) validate() error {
	input.Name = strings.TrimSpace(input.Name)
	return utils.ValidateInput("category", input)
}

func (input *NewSubCategory) validate(ctx context.Context, db *gorm.DB) error {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateInput("sub_category", input); err != nil {
		return err
	}
	// exists category
	return utils.ValidateResourceId[Category](ctx, db, "category", input.CategoryId)
}

func CreateCategory(ctx context.Context, input *NewCategory) (*Category, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	category := Category{Name: input.Name}
	if err := config.GetDB().WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func UpdateCategory(ctx context.Context, id int, input *NewCategory) (*Category, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	db := config.GetDB()
	category, err := utils.FetchModel[Category](ctx, db, "category", id)
	if err != nil {
		return nil, err
	}
	category.Name = input.Name
	if err := db.WithContext(ctx).Model(category).Select("name").Updates(category).Error; err != nil {
		return nil, err
	}
	return category, nil
}

// DeleteCategory removes the category with its sub categories and their products.
func DeleteCategory(ctx context.Context, id int) (*Category, error) {
	db := config.GetDB()
	category, err := utils.FetchModel[Category](ctx, db, "category", id)
	if err != nil {
		return nil, err
	}

	err = withVendorRecheck(func() error {
		vendorIds, err := vendorIdsForCategory(db.WithContext(ctx), id)
		if err != nil {
			return err
		}
		return runLedgerTransaction(ctx, "category.go", "DeleteCategory", vendorIds, func(tx *gorm.DB) error {
			current, err := vendorIdsForCategory(tx, id)
			if err != nil {
				return err
			}
			if err := ensureVendorsLocked(vendorIds, current); err != nil {
				return err
			}
			var subCategories []*SubCategory
			if err := tx.Where("category_id = ?", id).Order("id").Find(&subCategories).Error; err != nil {
				return err
			}
			for _, subCategory := range subCategories {
				if err := deleteSubCategoryTx(tx, subCategory); err != nil {
					return err
				}
			}
			return tx.Delete(category).Error
		})
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

func vendorIdsForCategory(db *gorm.DB, categoryId int) ([]int, error) {
	productIds, err := productIdsWhere(db,
		"sub_category_id IN (?)", db.Session(&gorm.Session{NewDB: true}).Model(&SubCategory{}).Select("id").Where("category_id = ?", categoryId))
	if err != nil {
		return nil, err
	}
	return vendorIdsForProducts(db, productIds)
}

func vendorIdsForSubCategory(db *gorm.DB, subCategoryId int) ([]int, error) {
	productIds, err := productIdsWhere(db, "sub_category_id = ?", subCategoryId)
	if err != nil {
		return nil, err
	}
	return vendorIdsForProducts(db, productIds)
}

func GetCategory(ctx context.Context, id int) (*Category, error) {
	return utils.FetchModel[Category](ctx, config.GetDB(), "category", id)
}

func ListCategories(ctx context.Context, name *string) ([]*Category, error) {
	db := config.GetDB()
	var results []*Category

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func CreateSubCategory(ctx context.Context, input *NewSubCategory) (*SubCategory, error) {
	db := config.GetDB()
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}
	subCategory := SubCategory{
		CategoryId: input.CategoryId,
		Name:       input.Name,
	}
	if err := db.WithContext(ctx).Create(&subCategory).Error; err != nil {
		return nil, err
	}
	return &subCategory, nil
}

func UpdateSubCategory(ctx context.Context, id int, input *NewSubCategory) (*SubCategory, error) {
	db := config.GetDB()
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}
	subCategory, err := utils.FetchModel[SubCategory](ctx, db, "sub_category", id)
	if err != nil {
		return nil, err
	}
	subCategory.CategoryId = input.CategoryId
	subCategory.Name = input.Name
	if err := db.WithContext(ctx).Model(subCategory).Select("category_id", "name").Updates(subCategory).Error; err != nil {
		return nil, err
	}
	return subCategory, nil
}

// DeleteSubCategory removes the sub category and its products.
func DeleteSubCategory(ctx context.Context, id int) (*SubCategory, error) {
	db := config.GetDB()
	subCategory, err := utils.FetchModel[SubCategory](ctx, db, "sub_category", id)
	if err != nil {
		return nil, err
	}

	err = withVendorRecheck(func() error {
		vendorIds, err := vendorIdsForSubCategory(db.WithContext(ctx), id)
		if err != nil {
			return err
		}
		return runLedgerTransaction(ctx, "category.go", "DeleteSubCategory", vendorIds, func(tx *gorm.DB) error {
			current, err := vendorIdsForSubCategory(tx, id)
			if err != nil {
				return err
			}
			if err := ensureVendorsLocked(vendorIds, current); err != nil {
				return err
			}
			return deleteSubCategoryTx(tx, subCategory)
		})
	})
	if err != nil {
		return nil, err
	}
	return subCategory, nil
}

func deleteSubCategoryTx(tx *gorm.DB, subCategory *SubCategory) error {
	var products []*Product
	if err := tx.Where("sub_category_id = ?", subCategory.ID).Order("id").Find(&products).Error; err != nil {
		return err
	}
	for _, product := range products {
		if err := deleteProductTx(tx, product); err != nil {
			return err
		}
	}
	return tx.Delete(subCategory).Error
}

func GetSubCategory(ctx context.Context, id int) (*SubCategory, error) {
	return utils.FetchModel[SubCategory](ctx, config.GetDB(), "sub_category", id)
}

func ListSubCategories(ctx context.Context, categoryId *int, name *string) ([]*SubCategory, error) {
	db := config.GetDB()
	var results []*SubCategory

	dbCtx := db.WithContext(ctx)
	if categoryId != nil && *categoryId > 0 {
		dbCtx = dbCtx.Where("category_id = ?", *categoryId)
	}
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
