package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ru-ticket/monitoring"
	"ru-ticket/utils"
)

type ClientConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// Client is a thin Mercado Pago REST client: preferences, payments and
// payment methods. It never retries; webhook redelivery is the retry path.
type Client struct {
	// baseURL is the base url of the Mercado Pago API.
	baseURL string

	// accessToken authenticates every call as a bearer token.
	accessToken string

	// breaker fails fast while the gateway keeps erroring.
	breaker *utils.CircuitBreaker

	// hc is the http client.
	hc *http.Client
}

// APIError is returned for non-2xx gateway replies.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago: status %d: %s", e.StatusCode, e.Body)
}

// NotFound reports whether the gateway answered 404.
func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

func NewClient(c ClientConfig) *Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:     c.BaseURL,
		accessToken: c.AccessToken,
		breaker:     utils.NewCircuitBreaker("mercadopago"),
		hc: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreatePreference creates a checkout preference for the given items.
func (c *Client) CreatePreference(ctx context.Context, req *PreferenceRequest) (*Preference, error) {
	idempotencyKey, err := utils.GenerateCode(16)
	if err != nil {
		return nil, fmt.Errorf("createPreference: idempotency key: %w", err)
	}

	var pref Preference
	if err := c.call(ctx, "create_preference", http.MethodPost, "/checkout/preferences", req, idempotencyKey, &pref); err != nil {
		return nil, fmt.Errorf("createPreference: %w", err)
	}
	return &pref, nil
}

// GetPayment fetches the authoritative payment object by id.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if id == "" {
		return nil, errors.New("getPayment: empty payment id")
	}

	var p Payment
	if err := c.call(ctx, "get_payment", http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil, "", &p); err != nil {
		return nil, fmt.Errorf("getPayment %s: %w", id, err)
	}
	return &p, nil
}

// ListPaymentMethods lists the payment methods enabled for the account.
func (c *Client) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	var methods []PaymentMethod
	if err := c.call(ctx, "list_payment_methods", http.MethodGet, "/v1/payment_methods", nil, "", &methods); err != nil {
		return nil, fmt.Errorf("listPaymentMethods: %w", err)
	}
	return methods, nil
}

func (c *Client) call(ctx context.Context, op, method, path string, body any, idempotencyKey string, out any) error {
	start := time.Now()

	_, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, c.do(ctx, method, path, body, idempotencyKey, out)
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	monitoring.ObserveGatewayCall(op, outcome, time.Since(start))

	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) error {
	var bodyReader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}
		bodyReader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("http.NewReq: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("http.Do: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("io.ReadAll: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	return nil
}
