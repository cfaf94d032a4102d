package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/worldcitisim/affiliates/internal/affiliate/domain"
	"github.com/worldcitisim/affiliates/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, affiliate *domain.Affiliate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO affiliates (id, user_id, uid, name, email, phone, nequi_phone, bank_name, bank_account_type, bank_account_number, commission_percent, dashboard_mode, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		affiliate.ID,
		affiliate.UserID,
		affiliate.UID,
		affiliate.Name,
		affiliate.Email,
		affiliate.Phone,
		affiliate.NequiPhone,
		affiliate.BankName,
		affiliate.BankAccountType,
		affiliate.BankAccountNumber,
		affiliate.CommissionPercent,
		affiliate.DashboardMode,
		affiliate.Status,
		affiliate.CreatedAt,
		affiliate.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, affiliate *domain.Affiliate) error {
	// UID is immutable and deliberately absent from the SET list.
	return db.WithContext(ctx).Exec(
		`UPDATE affiliates
		 SET name = ?, email = ?, phone = ?, nequi_phone = ?, bank_name = ?, bank_account_type = ?, bank_account_number = ?, commission_percent = ?, dashboard_mode = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		affiliate.Name,
		affiliate.Email,
		affiliate.Phone,
		affiliate.NequiPhone,
		affiliate.BankName,
		affiliate.BankAccountType,
		affiliate.BankAccountNumber,
		affiliate.CommissionPercent,
		affiliate.DashboardMode,
		affiliate.Status,
		affiliate.UpdatedAt,
		affiliate.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM affiliates WHERE id = ?`,
		id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Affiliate, error) {
	var affiliate domain.Affiliate
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE id = ?`,
		id,
	).Scan(&affiliate).Error
	if err != nil {
		return nil, err
	}
	if affiliate.ID == 0 {
		return nil, nil
	}
	return &affiliate, nil
}

func (r *repo) FindByUID(ctx context.Context, db *gorm.DB, uid string) (*domain.Affiliate, error) {
	var affiliate domain.Affiliate
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE uid = ?`,
		uid,
	).Scan(&affiliate).Error
	if err != nil {
		return nil, err
	}
	if affiliate.ID == 0 {
		return nil, nil
	}
	return &affiliate, nil
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Affiliate, error) {
	var affiliate domain.Affiliate
	err := db.WithContext(ctx).Raw(
		selectColumns+` WHERE user_id = ?`,
		userID,
	).Scan(&affiliate).Error
	if err != nil {
		return nil, err
	}
	if affiliate.ID == 0 {
		return nil, nil
	}
	return &affiliate, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListAffiliateFilter, page pagination.Pagination) ([]*domain.Affiliate, error) {
	stmt := db.WithContext(ctx).Model(&domain.Affiliate{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		stmt = stmt.Where("uid LIKE ? OR name LIKE ? OR email LIKE ?", like, like, like)
	}
	if cursor, err := pagination.DecodeCursor(page.PageToken); err == nil && cursor != nil && cursor.CreatedAt != "" {
		stmt = stmt.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	limit := page.PageSize
	if limit <= 0 {
		limit = 50
	}

	var affiliates []*domain.Affiliate
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&affiliates).Error
	if err != nil {
		return nil, err
	}
	return affiliates, nil
}

func (r *repo) UIDExists(ctx context.Context, db *gorm.DB, uid string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM affiliates WHERE uid = ?`,
		uid,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

const selectColumns = `SELECT id, user_id, uid, name, email, phone, nequi_phone, bank_name, bank_account_type, bank_account_number, commission_percent, dashboard_mode, status, created_at, updated_at FROM affiliates`
