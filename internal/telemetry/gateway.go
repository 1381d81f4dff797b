package telemetry

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

	"example.com/healthscore/internal/domain"
)

const dateLayout = "2006-01-02"

// GatewayClient talks to the provider bridge over HTTP/JSON.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

// GatewayOption customises a GatewayClient.
type GatewayOption func(*GatewayClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(c *GatewayClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewGatewayClient constructs a client with sane defaults.
func NewGatewayClient(baseURL string, opts ...GatewayOption) *GatewayClient {
	c := &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges the credential for a session.
func (c *GatewayClient) Login(ctx context.Context, email, password string) (Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return Session{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var session Session
	found, err := c.do(req, &session)
	if err != nil {
		return Session{}, err
	}
	if !found || session.Token == "" {
		return Session{}, fmt.Errorf("%w: login returned no session", domain.ErrAuthentication)
	}
	return session, nil
}

// FetchDailySummary returns the wellness summary for date.
func (c *GatewayClient) FetchDailySummary(ctx context.Context, session Session, date time.Time) (*DailySummary, error) {
	var summary DailySummary
	found, err := c.get(ctx, session, "/v1/daily-summary/"+date.UTC().Format(dateLayout), &summary)
	if err != nil || !found {
		return nil, err
	}
	return &summary, nil
}

// FetchSleep returns the sleep record ending on date.
func (c *GatewayClient) FetchSleep(ctx context.Context, session Session, date time.Time) (*Sleep, error) {
	var sleep Sleep
	found, err := c.get(ctx, session, "/v1/sleep/"+date.UTC().Format(dateLayout), &sleep)
	if err != nil || !found {
		return nil, err
	}
	return &sleep, nil
}

// FetchActivities returns activities started within [from, to].
func (c *GatewayClient) FetchActivities(ctx context.Context, session Session, from, to time.Time) ([]Activity, error) {
	query := url.Values{}
	query.Set("from", from.UTC().Format(dateLayout))
	query.Set("to", to.UTC().Format(dateLayout))

	var payload struct {
		Activities []Activity `json:"activities"`
	}
	found, err := c.get(ctx, session, "/v1/activities?"+query.Encode(), &payload)
	if err != nil || !found {
		return nil, err
	}
	return payload.Activities, nil
}

func (c *GatewayClient) get(ctx context.Context, session Session, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+session.Token)
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

// do executes req and decodes a 2xx body into out. It reports false for 404.
func (c *GatewayClient) do(req *http.Request, out any) (bool, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, fmt.Errorf("%w: %s %s: %v", domain.ErrFetch, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return false, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, errors.Join(domain.ErrFetch, ErrPermanent, fmt.Errorf("decode %s: %w", req.URL.Path, err))
	}
	return true, nil
}

func classifyStatus(resp *http.Response) error {
	status := resp.StatusCode
	switch {
	case status < 300, status == http.StatusNotFound:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusLocked:
		return fmt.Errorf("%w: status %d", domain.ErrAuthentication, status)
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrFetch, status)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Join(domain.ErrFetch, ErrPermanent, fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(body))))
	}
}

// Verifier checks credentials by logging in once.
type Verifier struct {
	Client  Client
	Timeout time.Duration
}

// Verify implements domain.CredentialVerifier.
func (v Verifier) Verify(ctx context.Context, cred domain.Credential) error {
	if v.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.Timeout)
		defer cancel()
	}
	_, err := v.Client.Login(ctx, cred.Email, cred.Password)
	return err
}
