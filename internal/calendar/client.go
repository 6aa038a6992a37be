// Package calendar is a Google Calendar v3 client scoped to what the
// plan mirror needs: create, patch, and delete single events. It
// authenticates with a service account key and caches the access token.
package calendar

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	baseURL     = "https://www.googleapis.com/calendar/v3"
	tokenURL    = "https://oauth2.googleapis.com/token"
	tokenWindow = 55 * time.Minute // refresh before the 1 hour expiry
)

// Client talks to the Google Calendar API with service account auth
type Client struct {
	httpClient  *http.Client
	calendarID  string
	credentials *serviceAccountKey

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type serviceAccountKey struct {
	Type        string `json:"type"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

// Config holds calendar client settings
type Config struct {
	CredentialsFile string // path to the service account JSON key
	CalendarID      string // calendar to write to (usually an email address)
}

// NewClient creates a client, reading and checking the key file up front
func NewClient(cfg Config) (*Client, error) {
	if cfg.CredentialsFile == "" || cfg.CalendarID == "" {
		return nil, fmt.Errorf("calendar credentials file and calendar ID are required")
	}

	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var key serviceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if key.Type != "service_account" {
		return nil, fmt.Errorf("credentials file must be a service account key (got %s)", key.Type)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		calendarID:  cfg.CalendarID,
		credentials: &key,
	}, nil
}

func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	now := time.Now()
	claims := map[string]any{
		"iss":   c.credentials.ClientEmail,
		"scope": "https://www.googleapis.com/auth/calendar.events",
		"aud":   tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	jwt, err := c.signJWT(claims)
	if err != nil {
		return "", fmt.Errorf("sign JWT: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", jwt)

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("token request failed (%d): %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = now.Add(tokenWindow)
	return c.accessToken, nil
}

func (c *Client) signJWT(claims map[string]any) (string, error) {
	block, _ := pem.Decode([]byte(c.credentials.PrivateKey))
	if block == nil {
		return "", fmt.Errorf("failed to parse PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return "", fmt.Errorf("private key is not RSA")
	}

	headerJSON, _ := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	claimsJSON, _ := json.Marshal(claims)

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(claimsJSON)

	hash := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(nil, rsaKey, crypto.SHA256, hash[:])
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get access token: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("calendar API error (%d): %s", errResp.Error.Code, errResp.Error.Message)
		}
		return nil, fmt.Errorf("calendar API error (%d): %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

type googleDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleEvent struct {
	ID      string          `json:"id,omitempty"`
	Summary string          `json:"summary"`
	Start   *googleDateTime `json:"start,omitempty"`
	End     *googleDateTime `json:"end,omitempty"`
}

func eventBody(title string, start, end time.Time) googleEvent {
	return googleEvent{
		Summary: title,
		Start:   &googleDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &googleDateTime{DateTime: end.Format(time.RFC3339)},
	}
}

func (c *Client) eventsPath(suffix string) string {
	return "/calendars/" + url.PathEscape(c.calendarID) + "/events" + suffix
}

// CreateEvent inserts an event and returns its ID
func (c *Client) CreateEvent(ctx context.Context, title string, start, end time.Time) (string, error) {
	respBody, err := c.request(ctx, "POST", c.eventsPath(""), eventBody(title, start, end))
	if err != nil {
		return "", err
	}
	var created googleEvent
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("parse created event: %w", err)
	}
	return created.ID, nil
}

// UpdateEvent patches an existing event and returns its (possibly
// unchanged) ID
func (c *Client) UpdateEvent(ctx context.Context, eventRef, title string, start, end time.Time) (string, error) {
	respBody, err := c.request(ctx, "PATCH", c.eventsPath("/"+url.PathEscape(eventRef)), eventBody(title, start, end))
	if err != nil {
		return "", err
	}
	var updated googleEvent
	if err := json.Unmarshal(respBody, &updated); err != nil {
		return "", fmt.Errorf("parse updated event: %w", err)
	}
	if updated.ID == "" {
		return eventRef, nil
	}
	return updated.ID, nil
}

// DeleteEvent removes an event; a 410 for an already-deleted event is
// surfaced as an error and handled upstream as a note
func (c *Client) DeleteEvent(ctx context.Context, eventRef string) error {
	_, err := c.request(ctx, "DELETE", c.eventsPath("/"+url.PathEscape(eventRef)), nil)
	return err
}
