package repositories

import (
	"context"
	"fmt"
	"time"

	"parkpay/internal/models"

	"gorm.io/gorm"
)

type parkingRepository struct {
	db *gorm.DB
}

func (r *parkingRepository) CreateLot(ctx context.Context, lot *models.ParkingLot) error {
	if err := r.db.WithContext(ctx).Create(lot).Error; err != nil {
		return fmt.Errorf("failed to create parking lot: %w", err)
	}
	return nil
}

func (r *parkingRepository) GetLot(ctx context.Context, id string) (*models.ParkingLot, error) {
	var lot models.ParkingLot
	if err := r.db.WithContext(ctx).First(&lot, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrLotNotFound, "get parking lot")
	}
	return &lot, nil
}

func (r *parkingRepository) CreateSlot(ctx context.Context, slot *models.ParkingSlot) error {
	if slot.Status == "" {
		slot.Status = models.SlotStatusAvailable
	}
	if err := r.db.WithContext(ctx).Create(slot).Error; err != nil {
		return fmt.Errorf("failed to create parking slot: %w", err)
	}
	return nil
}

func (r *parkingRepository) GetSlot(ctx context.Context, id string) (*models.ParkingSlot, error) {
	var slot models.ParkingSlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrSlotNotFound, "get parking slot")
	}
	return &slot, nil
}

func (r *parkingRepository) OpenToken(ctx context.Context, token *models.ParkingToken) error {
	token.Status = models.TokenStatusActive
	if token.EntryAt.IsZero() {
		token.EntryAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("failed to create parking token: %w", err)
	}

	res := r.db.WithContext(ctx).
		Model(&models.ParkingSlot{}).
		Where("id = ? AND status = ?", token.SlotID, models.SlotStatusAvailable).
		Updates(map[string]interface{}{
			"status":     models.SlotStatusOccupied,
			"token_id":   token.ID,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to occupy slot: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetSlot(ctx, token.SlotID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *parkingRepository) GetToken(ctx context.Context, id string) (*models.ParkingToken, error) {
	var token models.ParkingToken
	if err := r.db.WithContext(ctx).First(&token, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrTokenNotFound, "get parking token")
	}
	return &token, nil
}

func (r *parkingRepository) CompleteToken(ctx context.Context, id string, fee int64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.ParkingToken{}).
		Where("id = ? AND status = ?", id, models.TokenStatusActive).
		Updates(map[string]interface{}{
			"status":       models.TokenStatusCompleted,
			"fee":          fee,
			"completed_at": at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to complete parking token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetToken(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

func (r *parkingRepository) ReleaseSlot(ctx context.Context, slotID, tokenID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.ParkingSlot{}).
		Where("id = ? AND token_id = ?", slotID, tokenID).
		Updates(map[string]interface{}{
			"status":     models.SlotStatusAvailable,
			"token_id":   gorm.Expr("NULL"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to release slot: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetSlot(ctx, slotID); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}
