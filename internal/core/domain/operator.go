package domain

import (
	"time"

	"github.com/google/uuid"
)

// Operator is a platform admin allowed to approve deposits and resolve escrow.
type Operator struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}
