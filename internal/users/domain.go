// Package users manages consultant accounts and their billable rates.
package users

import (
	"time"

	"github.com/vantage-ops/vantage-ops/internal/auth"
)

// User represents a consultant or admin account. BillableRate is the current
// default rate; changing it never touches amounts already frozen onto
// approved time entries.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         auth.Role `json:"role"`
	BillableRate *float64  `json:"billableRate,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
