// Package billing integrates with the external invoicing provider: encrypted
// API credentials, customer mappings, session management and batch submission.
package billing

import "time"

// Environment selects the provider endpoint and its API dialect. The sandbox
// speaks the JSON v3 API; production still runs the legacy form-encoded API.
type Environment string

const (
	EnvSandbox    Environment = "SANDBOX"
	EnvProduction Environment = "PRODUCTION"
)

// Credentials holds the provider API credentials for the organization. They
// are stored encrypted and never leave the process in plaintext.
type Credentials struct {
	DevKey         string      `json:"devKey"`
	Username       string      `json:"username"`
	Password       string      `json:"password"`
	OrganizationID string      `json:"organizationId"`
	Environment    Environment `json:"environment"`
}

// CustomerMapping links an internal client to the provider's customer id.
// One mapping per client.
type CustomerMapping struct {
	ID                   int64     `json:"id"`
	ClientID             int64     `json:"clientId"`
	ExternalCustomerID   string    `json:"externalCustomerId"`
	ExternalCustomerName string    `json:"externalCustomerName"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Customer is a provider-side customer record.
type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InvoiceLine is one line of an outbound invoice.
type InvoiceLine struct {
	Description string
	Quantity    float64
	Price       float64
}

// InvoiceRequest is the provider-neutral outbound invoice. Each dialect
// renders it into its own wire shape.
type InvoiceRequest struct {
	CustomerID    string
	InvoiceNumber string
	InvoiceDate   time.Time
	DueDate       time.Time
	Lines         []InvoiceLine
}

// RemoteInvoice identifies an invoice created at the provider.
type RemoteInvoice struct {
	ID            string
	InvoiceNumber string
}
