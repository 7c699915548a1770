package platform

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"
)

// Client is a low-level XML-RPC client for the commerce platform API.
// Every typed call goes through a raw decode followed by a JSON round-trip
// into the target struct, so FlexString/FlexFloat can absorb the platform's
// dynamic typing.
type Client struct {
	URL       string
	APIUser   string
	APIKey    string
	transport http.RoundTripper
}

// NewClient creates a new platform client. Each network call is bounded by
// the given timeout.
func NewClient(url, apiUser, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		URL:     strings.TrimRight(url, "/") + "/api/xmlrpc",
		APIUser: apiUser,
		APIKey:  apiKey,
		transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
		},
	}
}

// Login opens an API session and returns the session token
func (c *Client) Login() (string, error) {
	client, err := xmlrpc.NewClient(c.URL, c.transport)
	if err != nil {
		return "", fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	var session string
	if err := client.Call("login", []interface{}{c.APIUser, c.APIKey}, &session); err != nil {
		return "", fmt.Errorf("platform login failed: %w", err)
	}

	return session, nil
}

// Call invokes an API method within a session and decodes the response into
// result. result may be nil for calls whose return value is ignored.
func (c *Client) Call(session, method string, args []interface{}, result interface{}) error {
	client, err := xmlrpc.NewClient(c.URL, c.transport)
	if err != nil {
		return fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	var raw interface{}
	if err := client.Call("call", []interface{}{session, method, args}, &raw); err != nil {
		return fmt.Errorf("failed to execute %s: %w", method, err)
	}

	if result == nil {
		return nil
	}

	// Convert the raw value to the target struct via JSON marshaling so the
	// Flex* types get a chance to normalize dynamic fields.
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal raw result: %w", err)
	}

	if err := json.Unmarshal(jsonData, result); err != nil {
		return fmt.Errorf("failed to unmarshal into target: %w", err)
	}

	return nil
}

// EndSession closes an API session. Callers ignore failures; an expired
// session is already closed.
func (c *Client) EndSession(session string) error {
	client, err := xmlrpc.NewClient(c.URL, c.transport)
	if err != nil {
		return fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	var ok bool
	return client.Call("endSession", []interface{}{session}, &ok)
}

// IsSessionExpired reports whether err is the platform's expired-session
// fault, which callers recover from by refreshing the session and retrying.
func IsSessionExpired(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Session expired") || strings.Contains(msg, "session expired")
}
