package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vantage-ops/vantage-ops/internal/platform/httpx"
)

// errSessionExpired is returned by a dialect on a 401-class response. The
// client invalidates the cached session and retries the call once.
var errSessionExpired = fmt.Errorf("%w: billing session expired", httpx.ErrExternal)

// CredentialsSource yields the decrypted provider credentials at call time.
type CredentialsSource interface {
	Credentials(ctx context.Context) (*Credentials, error)
}

// dialect renders provider-neutral calls into one of the two wire formats.
type dialect interface {
	login(ctx context.Context, hc *http.Client, baseURL string, creds *Credentials) (string, error)
	listCustomers(ctx context.Context, hc *http.Client, baseURL string, creds *Credentials, sessionID string) ([]Customer, error)
	createInvoice(ctx context.Context, hc *http.Client, baseURL string, creds *Credentials, sessionID string, req InvoiceRequest) (*RemoteInvoice, error)
}

// ClientConfig carries the per-environment endpoints.
type ClientConfig struct {
	SandboxURL    string
	ProductionURL string
	Timeout       time.Duration
	SessionTTL    time.Duration
}

// Client talks to the external billing provider. The sandbox environment
// speaks the JSON v3 dialect, production the legacy form-encoded one; both
// are normalized into the same result types.
type Client struct {
	httpClient *http.Client
	config     ClientConfig
	source     CredentialsSource
	sessions   *SessionCache
}

// NewClient builds a provider client.
func NewClient(config ClientConfig, source CredentialsSource) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 35 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		source:     source,
		sessions:   NewSessionCache(config.SessionTTL),
	}
}

func (c *Client) endpoint(env Environment) (dialect, string, error) {
	switch env {
	case EnvSandbox:
		return jsonDialect{}, strings.TrimSuffix(c.config.SandboxURL, "/"), nil
	case EnvProduction:
		return formDialect{}, strings.TrimSuffix(c.config.ProductionURL, "/"), nil
	default:
		return nil, "", fmt.Errorf("%w: unknown billing environment %q", httpx.ErrValidation, env)
	}
}

// withSession runs fn with a valid session id, retrying once with a fresh
// session when the provider reports the cached one expired.
func (c *Client) withSession(ctx context.Context, fn func(d dialect, baseURL string, creds *Credentials, sessionID string) error) error {
	creds, err := c.source.Credentials(ctx)
	if err != nil {
		return err
	}
	d, baseURL, err := c.endpoint(creds.Environment)
	if err != nil {
		return err
	}
	login := func(ctx context.Context) (string, error) {
		return d.login(ctx, c.httpClient, baseURL, creds)
	}

	sessionID, err := c.sessions.Get(ctx, login)
	if err != nil {
		return err
	}

	err = fn(d, baseURL, creds, sessionID)
	if err == nil || !errors.Is(err, errSessionExpired) {
		return err
	}

	c.sessions.Invalidate(sessionID)
	sessionID, err = c.sessions.Get(ctx, login)
	if err != nil {
		return err
	}
	return fn(d, baseURL, creds, sessionID)
}

// ListCustomers returns the provider's customers.
func (c *Client) ListCustomers(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	err := c.withSession(ctx, func(d dialect, baseURL string, creds *Credentials, sessionID string) error {
		var err error
		customers, err = d.listCustomers(ctx, c.httpClient, baseURL, creds, sessionID)
		return err
	})
	return customers, err
}

// CreateInvoice creates one invoice at the provider.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*RemoteInvoice, error) {
	var remote *RemoteInvoice
	err := c.withSession(ctx, func(d dialect, baseURL string, creds *Credentials, sessionID string) error {
		var err error
		remote, err = d.createInvoice(ctx, c.httpClient, baseURL, creds, sessionID, req)
		return err
	})
	return remote, err
}

const wireDate = "2006-01-02"

// jsonDialect implements the v3-style JSON API: JSON bodies, devKey and
// sessionId carried as headers, top-level response fields.
type jsonDialect struct{}

func (jsonDialect) do(ctx context.Context, hc *http.Client, method, url string, headers map[string]string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("billing: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("billing: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", httpx.ErrExternal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errSessionExpired
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: billing provider returned %d: %s", httpx.ErrExternal, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode billing response: %s", httpx.ErrExternal, err)
	}
	return nil
}

func (d jsonDialect) login(ctx context.Context, hc *http.Client, baseURL string, creds *Credentials) (string, error) {
	var out struct {
		SessionID string `json:"sessionId"`
	}
	err := d.do(ctx, hc, http.MethodPost, baseURL+"/login",
		map[string]string{"devKey": creds.DevKey},
		map[string]string{
			"username":       creds.Username,
			"password":       creds.Password,
			"organizationId": creds.OrganizationID,
		}, &out)
	if err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("%w: billing login returned no session", httpx.ErrExternal)
	}
	return out.SessionID, nil
}

func (d jsonDialect) headers(creds *Credentials, sessionID string) map[string]string {
	return map[string]string{"devKey": creds.DevKey, "sessionId": sessionID}
}

func (d jsonDialect) listCustomers(ctx context.Context, hc *http.Client, baseURL string, creds *Credentials, sessionID string) ([]Customer, error) {
	var out struct {
		Customers []Customer `json:"customers"`
	}
	if err := d.do(ctx, hc, http.MethodGet, baseURL+"/customers", d.headers(creds, sessionID), nil, &out); err != nil {
		return nil, err
	}
	return out.Customers, nil
}

func (d jsonDialect) createInvoice(ctx context.Context, hc *http.Client, baseURL string, creds *Credentials, sessionID string, req InvoiceRequest) (*RemoteInvoice, error) {
	type line struct {
		Description string  `json:"description"`
		Quantity    float64 `json:"quantity"`
		Price       float64 `json:"price"`
	}
	body := struct {
		CustomerID    string `json:"customerId"`
		InvoiceNumber string `json:"invoiceNumber"`
		InvoiceDate   string `json:"invoiceDate"`
		DueDate       string `json:"dueDate"`
		Lines         []line `json:"lineItems"`
	}{
		CustomerID:    req.CustomerID,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceDate:   req.InvoiceDate.Format(wireDate),
		DueDate:       req.DueDate.Format(wireDate),
	}
	for _, l := range req.Lines {
		body.Lines = append(body.Lines, line(l))
	}

	var out struct {
		ID            string `json:"id"`
		InvoiceNumber string `json:"invoiceNumber"`
	}
	if err := d.do(ctx, hc, http.MethodPost, baseURL+"/invoices", d.headers(creds, sessionID), body, &out); err != nil {
		return nil, err
	}
	return &RemoteInvoice{ID: out.ID, InvoiceNumber: out.InvoiceNumber}, nil
}

// formDialect implements the legacy API: form-encoded bodies carrying devKey,
// sessionId and a JSON-stringified data field, responses wrapped in a
// response_status/response_data envelope.
type formDialect struct{}

func (formDialect) post(ctx context.Context, hc *http.Client, url string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("billing: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", httpx.ErrExternal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errSessionExpired
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: billing provider returned %d: %s", httpx.ErrExternal, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var envelope struct {
		ResponseStatus  int             `json:"response_status"`
		ResponseMessage string          `json:"response_message"`
		ResponseData    json.RawMessage `json:"response_data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%w: decode billing response: %s", httpx.ErrExternal, err)
	}
	if envelope.ResponseStatus != 0 {
		// The legacy API signals an expired session inside a 200 envelope.
		if strings.Contains(strings.ToLower(envelope.ResponseMessage), "session") {
			return errSessionExpired
		}
		return fmt.Errorf("%w: billing provider error: %s", httpx.ErrExternal, envelope.ResponseMessage)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.ResponseData, out); err != nil {
		return fmt.Errorf("%w: decode billing response data: %s", httpx.ErrExternal, err)
	}
	return nil
}

func (d formDialect) login(ctx context.Context, hc *http.Client, baseURL string, creds *Credentials) (string, error) {
	form := url.Values{}
	form.Set("devKey", creds.DevKey)
	form.Set("userName", creds.Username)
	form.Set("password", creds.Password)
	form.Set("orgId", creds.OrganizationID)

	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := d.post(ctx, hc, baseURL+"/Login.json", form, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("%w: billing login returned no session", httpx.ErrExternal)
	}
	return out.SessionID, nil
}

func (d formDialect) form(creds *Credentials, sessionID string, data any) (url.Values, error) {
	form := url.Values{}
	form.Set("devKey", creds.DevKey)
	form.Set("sessionId", sessionID)
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("billing: encode data field: %w", err)
		}
		form.Set("data", string(payload))
	}
	return form, nil
}

func (d formDialect) listCustomers(ctx context.Context, hc *http.Client, baseURL string, creds *Credentials, sessionID string) ([]Customer, error) {
	form, err := d.form(creds, sessionID, map[string]int{"start": 0, "max": 999})
	if err != nil {
		return nil, err
	}
	var out []Customer
	if err := d.post(ctx, hc, baseURL+"/List/Customer.json", form, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d formDialect) createInvoice(ctx context.Context, hc *http.Client, baseURL string, creds *Credentials, sessionID string, req InvoiceRequest) (*RemoteInvoice, error) {
	type line struct {
		Description string  `json:"description"`
		Quantity    float64 `json:"quantity"`
		Price       float64 `json:"price"`
	}
	obj := struct {
		CustomerID    string `json:"customerId"`
		InvoiceNumber string `json:"invoiceNumber"`
		InvoiceDate   string `json:"invoiceDate"`
		DueDate       string `json:"dueDate"`
		Lines         []line `json:"invoiceLineItems"`
	}{
		CustomerID:    req.CustomerID,
		InvoiceNumber: req.InvoiceNumber,
		InvoiceDate:   req.InvoiceDate.Format(wireDate),
		DueDate:       req.DueDate.Format(wireDate),
	}
	for _, l := range req.Lines {
		obj.Lines = append(obj.Lines, line(l))
	}

	form, err := d.form(creds, sessionID, map[string]any{"obj": obj})
	if err != nil {
		return nil, err
	}
	var out struct {
		ID            string `json:"id"`
		InvoiceNumber string `json:"invoiceNumber"`
	}
	if err := d.post(ctx, hc, baseURL+"/Crud/Create/Invoice.json", form, &out); err != nil {
		return nil, err
	}
	return &RemoteInvoice{ID: out.ID, InvoiceNumber: out.InvoiceNumber}, nil
}
