package model

import (
	"time"
)

// Base contains common fields for all models
type Base struct {
	ID        string    `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Owned is implemented by every record carrying an owner id used for access control.
type Owned interface {
	GetOwnerID() string
}
