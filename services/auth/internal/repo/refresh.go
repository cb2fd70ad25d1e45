package repo

import (
	"context"

	"github.com/Skotchmaster/sst_backend/services/auth/internal/models"
)

func (r *GormRepo) CreateRefresh(ctx context.Context, token *models.RefreshToken) error {
	return mapErr(r.DB.WithContext(ctx).Create(token).Error)
}

func (r *GormRepo) FindActiveRefreshByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := r.DB.WithContext(ctx).
		Where("token = ? AND revoked = ?", hash, false).
		First(&token).Error; err != nil {
		return nil, mapErr(err)
	}
	return &token, nil
}

func (r *GormRepo) FindRefreshByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("token = ?", hash).First(&token).Error; err != nil {
		return nil, mapErr(err)
	}
	return &token, nil
}

// RevokeRefresh flips revoked false→true; it reports false when the row was already revoked.
func (r *GormRepo) RevokeRefresh(ctx context.Context, id uint) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = ?", id, false).
		Update("revoked", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) RevokeRefreshByHash(ctx context.Context, hash string) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ? AND revoked = ?", hash, false).
		Update("revoked", true)
	return res.RowsAffected, res.Error
}

func (r *GormRepo) RevokeAllRefreshForUser(ctx context.Context, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	return res.RowsAffected, res.Error
}
