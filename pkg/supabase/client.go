package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrNotConfigured indicates the client was built without a URL or key.
var ErrNotConfigured = errors.New("missing SUPABASE_URL or SUPABASE_KEY")

// UpstreamError carries a non-2xx response from the REST endpoint.
type UpstreamError struct {
	Status int
	Detail any
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("supabase responded with status %d", e.Status)
}

// Client talks to a Supabase REST table. Requests are never retried.
type Client struct {
	baseURL string
	key     string
	timeout time.Duration
}

// NewClient constructs a REST client. An empty url or key yields a client whose calls
// return ErrNotConfigured.
func NewClient(url, key string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(url), "/"),
		key:     strings.TrimSpace(key),
		timeout: timeout,
	}
}

// Configured reports whether the client has both a URL and a key.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.key != ""
}

// Select returns every row of table as raw JSON objects.
func (c *Client) Select(table string) ([]json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	agent := fiber.Get(fmt.Sprintf("%s/rest/v1/%s?select=*", c.baseURL, table))
	c.authorize(agent)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("select %s: %w", table, errors.Join(errs...))
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return nil, &UpstreamError{Status: status, Detail: string(body)}
	}

	rows := make([]json.RawMessage, 0)
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", table, err)
	}
	return rows, nil
}

// Insert adds row to table and returns the stored representation.
func (c *Client) Insert(table string, row map[string]any) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encode %s row: %w", table, err)
	}

	agent := fiber.Post(fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table))
	c.authorize(agent)
	agent.Set("Prefer", "return=representation")
	agent.ContentType(fiber.MIMEApplicationJSON)
	agent.Body(payload)

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("insert %s: %w", table, errors.Join(errs...))
	}
	if status < fiber.StatusOK || status >= fiber.StatusMultipleChoices {
		return nil, &UpstreamError{Status: status, Detail: detailFrom(body)}
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode inserted %s row: %w", table, err)
	}
	if len(rows) == 0 {
		return json.RawMessage("null"), nil
	}
	return rows[0], nil
}

func (c *Client) authorize(agent *fiber.Agent) {
	agent.Timeout(c.timeout)
	agent.Set("apikey", c.key)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.key)
}

func detailFrom(body []byte) any {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
