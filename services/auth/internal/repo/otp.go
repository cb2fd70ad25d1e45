package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/sst_backend/services/auth/internal/models"
)

func (r *GormRepo) PurgeExpiredOTP(ctx context.Context, userID uint, purpose string, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("user_id = ? AND purpose = ? AND expires_at < ?", userID, purpose, now).
		Delete(&models.TwoFactorCode{})
	return res.RowsAffected, res.Error
}

func (r *GormRepo) CreateOTP(ctx context.Context, otp *models.TwoFactorCode) error {
	return mapErr(r.DB.WithContext(ctx).Create(otp).Error)
}

func (r *GormRepo) FindOTP(ctx context.Context, id, userID uint, purpose string) (*models.TwoFactorCode, error) {
	var otp models.TwoFactorCode
	if err := r.DB.WithContext(ctx).
		Where("id = ? AND user_id = ? AND purpose = ?", id, userID, purpose).
		First(&otp).Error; err != nil {
		return nil, mapErr(err)
	}
	return &otp, nil
}

// ConsumeOTP sets consumed_at only if the row is still unconsumed and unexpired.
// False means another request won the race or the code lapsed meanwhile.
func (r *GormRepo) ConsumeOTP(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.TwoFactorCode{}).
		Where("id = ? AND consumed_at IS NULL AND expires_at > ?", id, now).
		Update("consumed_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
