package pesapal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

const (
	sandboxBaseURL    = "https://cybqa.pesapal.com/pesapalv3/api"
	productionBaseURL = "https://pay.pesapal.com/v3/api"
)

type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	Environment    Environment
	// BaseURL overrides the environment-derived endpoint. Used by tests.
	BaseURL string
}

// GatewayError covers every way the gateway can refuse us: transport
// failure, non-2xx response, or an error object in a 200 body. The
// caller treats all of them as user-retryable; raw gateway text is
// logged but never shown to end users.
type GatewayError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pesapal %s: %v", e.Op, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("pesapal %s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("pesapal %s: http %d", e.Op, e.StatusCode)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// apiError is the error object Pesapal embeds in otherwise-200 bodies.
type apiError struct {
	ErrorType string `json:"error_type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

type authResponse struct {
	Token      string    `json:"token"`
	ExpiryDate string    `json:"expiryDate"`
	Error      *apiError `json:"error"`
}

type ipnResponse struct {
	IPNID string    `json:"ipn_id"`
	Error *apiError `json:"error"`
}

// BillingAddress is the customer detail block Pesapal requires on a
// hosted-checkout submission.
type BillingAddress struct {
	EmailAddress string `json:"email_address"`
	PhoneNumber  string `json:"phone_number"`
	CountryCode  string `json:"country_code"`
	FirstName    string `json:"first_name"`
	MiddleName   string `json:"middle_name,omitempty"`
	LastName     string `json:"last_name"`
	Line1        string `json:"line_1"`
	Line2        string `json:"line_2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	ZipCode      string `json:"zip_code"`
}

// OrderRequest submits a hosted-checkout session. ID doubles as the
// merchant reference and must equal the local order id so callbacks
// can be correlated without a lookup table.
type OrderRequest struct {
	ID             string         `json:"id"`
	Currency       string         `json:"currency"`
	Amount         float64        `json:"amount"`
	Description    string         `json:"description"`
	CallbackURL    string         `json:"callback_url"`
	NotificationID string         `json:"notification_id"`
	BillingAddress BillingAddress `json:"billing_address"`
}

type OrderResponse struct {
	OrderTrackingID   string    `json:"order_tracking_id"`
	MerchantReference string    `json:"merchant_reference"`
	RedirectURL       string    `json:"redirect_url"`
	Error             *apiError `json:"error"`
}

// TransactionStatus is the gateway-native status payload; mapping onto
// the local enums happens in the payment package, not here.
type TransactionStatus struct {
	PaymentMethod            string    `json:"payment_method"`
	Amount                   float64   `json:"amount"`
	Currency                 string    `json:"currency"`
	PaymentStatusDescription string    `json:"payment_status_description"`
	ConfirmationCode         string    `json:"confirmation_code"`
	MerchantReference        string    `json:"merchant_reference"`
	Error                    *apiError `json:"error"`
}

type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sandboxBaseURL
		if cfg.Environment == EnvironmentProduction {
			baseURL = productionBaseURL
		}
	}
	return &Client{
		cfg:     cfg,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// accessToken returns the cached bearer token, re-authenticating when
// it is within a minute of expiry. Pesapal tokens are short-lived, so
// caching for the process lifetime would break long-running servers.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.token, nil
	}

	body := map[string]string{
		"consumer_key":    c.cfg.ConsumerKey,
		"consumer_secret": c.cfg.ConsumerSecret,
	}

	var resp authResponse
	if err := c.post(ctx, "auth", "/Auth/RequestToken", "", body, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", &GatewayError{Op: "auth", Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if resp.Token == "" {
		return "", &GatewayError{Op: "auth", Message: "empty token in response"}
	}

	c.token = resp.Token
	c.tokenExpiry = parseExpiry(resp.ExpiryDate)
	return c.token, nil
}

// parseExpiry falls back to a conservative five minutes when the
// gateway sends an unparseable timestamp.
func parseExpiry(raw string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999999999"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Now().Add(5 * time.Minute)
}

// RegisterIPN registers the server-to-server notification endpoint and
// returns the ipn id to attach to order submissions.
func (c *Client) RegisterIPN(ctx context.Context, ipnURL string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	body := map[string]string{
		"url":                   ipnURL,
		"ipn_notification_type": "GET",
	}

	var resp ipnResponse
	if err := c.post(ctx, "register ipn", "/URLSetup/RegisterIPN", token, body, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", &GatewayError{Op: "register ipn", Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return resp.IPNID, nil
}

// SubmitOrderRequest opens a hosted-checkout session and returns the
// redirect URL the customer completes payment on.
func (c *Client) SubmitOrderRequest(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp OrderResponse
	if err := c.post(ctx, "submit order", "/Transactions/SubmitOrderRequest", token, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &GatewayError{Op: "submit order", Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return &resp, nil
}

// GetTransactionStatus queries the gateway-native status of a
// transaction by its tracking id.
func (c *Client) GetTransactionStatus(ctx context.Context, trackingID string) (*TransactionStatus, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/Transactions/GetTransactionStatus?orderTrackingId=" + url.QueryEscape(trackingID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &GatewayError{Op: "transaction status", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	var resp TransactionStatus
	if err := c.do(httpReq, "transaction status", &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil && resp.Error.Code != "" {
		return nil, &GatewayError{Op: "transaction status", Code: resp.Error.Code, Message: resp.Error.Message}
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, op, path, token string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Message: string(raw)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
