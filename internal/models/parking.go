package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "AVAILABLE"
	SlotStatusOccupied  SlotStatus = "OCCUPIED"
)

type TokenStatus string

const (
	TokenStatusActive    TokenStatus = "ACTIVE"
	TokenStatusCompleted TokenStatus = "COMPLETED"
	TokenStatusCancelled TokenStatus = "CANCELLED"
)

// ParkingLot receives parking fees into its MERCHANT wallet.
type ParkingLot struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`
	Currency  string    `gorm:"type:char(3);not null" json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

func (l *ParkingLot) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

type ParkingSlot struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	LotID     string     `gorm:"type:varchar(36);not null;index" json:"lot_id"`
	Code      string     `gorm:"type:varchar(16);not null" json:"code"`
	Status    SlotStatus `gorm:"type:varchar(16);not null;default:'AVAILABLE'" json:"status"`
	TokenID   *string    `gorm:"type:varchar(36)" json:"token_id,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (s *ParkingSlot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// ParkingToken is an open parking session issued at the entry gate.
type ParkingToken struct {
	ID           string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	LotID        string      `gorm:"type:varchar(36);not null;index" json:"lot_id"`
	SlotID       string      `gorm:"type:varchar(36);not null" json:"slot_id"`
	VehiclePlate string      `gorm:"type:varchar(16)" json:"vehicle_plate"`
	Status       TokenStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Fee          int64       `gorm:"not null;default:0" json:"fee"`
	EntryAt      time.Time   `json:"entry_at"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

func (t *ParkingToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
