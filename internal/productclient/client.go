// Package productclient is an HTTP client for the product API.
package productclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	prod "github.com/MikeMC777/product-service/internal/product"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("product not found")

// APIError is a non-2xx answer other than 404.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("product api: %d %s", e.Status, e.Message)
}

type Client struct {
	HTTP    *http.Client
	BaseURL string
}

// New returns a client with a 5s timeout whose transport propagates
// trace context.
func New(baseURL string) *Client {
	return &Client{
		HTTP: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) Create(ctx context.Context, req prod.ProductRequest) (*prod.ProductResponse, error) {
	var out prod.ProductResponse
	if err := c.do(ctx, http.MethodPost, "/products", req, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) List(ctx context.Context) ([]prod.ProductResponse, error) {
	var out []prod.ProductResponse
	if err := c.do(ctx, http.MethodGet, "/products", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id int64) (*prod.ProductResponse, error) {
	var out prod.ProductResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Update(ctx context.Context, id int64, req prod.ProductRequest) (*prod.ProductResponse, error) {
	var out prod.ProductResponse
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), nil, http.StatusNoContent, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == want:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		var e prod.HTTPError
		_ = json.NewDecoder(res.Body).Decode(&e)
		if e.Error == "" {
			e.Error = res.Status
		}
		return &APIError{Status: res.StatusCode, Message: e.Error}
	}
}
