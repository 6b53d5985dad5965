// Package masterdata manages the client and project records that time
// entries bill against.
package masterdata

import "time"

// Client is a customer organization.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Project is one engagement for a client. BillingRate is the current default
// client rate; amounts frozen onto approved entries never change with it.
type Project struct {
	ID          int64     `json:"id"`
	ClientID    int64     `json:"clientId"`
	Name        string    `json:"name"`
	BillingRate *float64  `json:"billingRate,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ClientInput carries the writable client fields.
type ClientInput struct {
	Name     string
	IsActive bool
}

// ProjectInput carries the writable project fields.
type ProjectInput struct {
	ClientID    int64
	Name        string
	BillingRate *float64
	IsActive    bool
}
