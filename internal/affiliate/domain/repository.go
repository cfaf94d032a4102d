package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/worldcitisim/affiliates/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAffiliateFilter struct {
	Status AffiliateStatus
	Search string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, affiliate *Affiliate) error
	Update(ctx context.Context, db *gorm.DB, affiliate *Affiliate) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Affiliate, error)
	FindByUID(ctx context.Context, db *gorm.DB, uid string) (*Affiliate, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Affiliate, error)
	List(ctx context.Context, db *gorm.DB, filter ListAffiliateFilter, page pagination.Pagination) ([]*Affiliate, error)
	UIDExists(ctx context.Context, db *gorm.DB, uid string) (bool, error)
}
