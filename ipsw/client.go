package ipsw

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/udiddirector/udiddirector/utils"
)

// DefaultBaseURL is the public ipsw.me firmware catalog API.
const DefaultBaseURL = "https://api.ipsw.me/v4"

// ErrClientNotInitialized - when the catalog client hasn't been initialized
var ErrClientNotInitialized = errors.New("ipsw client not initialized")

// CatalogClient looks up catalog metadata for a device product code.
type CatalogClient interface {
	GetDevice(product string) (*DeviceResponse, error)
}

// Client is a client for the ipsw.me firmware catalog API.
type Client struct {
	baseURL string
	client  *utils.HTTPClient
}

// catalogClient holds the global catalog client instance
var catalogClient CatalogClient

// InitClient initializes the global catalog client.
func InitClient(baseURL string) {
	catalogClient = NewClient(baseURL)
}

// SetClientForTesting allows injecting a mock client for testing
func SetClientForTesting(client CatalogClient) {
	catalogClient = client
}

// GlobalClient returns the global catalog client instance.
// Returns ErrClientNotInitialized if InitClient hasn't been called.
func GlobalClient() (CatalogClient, error) {
	if catalogClient == nil {
		return nil, ErrClientNotInitialized
	}
	return catalogClient, nil
}

// NewClient creates a new firmware catalog API client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  utils.NewHTTPClient(10*time.Second, nil),
	}
}

// GetDevice fetches the catalog entry for a product code, including the
// full firmware list with build ids, versions and signing status.
func (c *Client) GetDevice(product string) (*DeviceResponse, error) {
	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing catalog base URL")
	}
	endpoint.Path = path.Join(endpoint.Path, "device", product)

	params := url.Values{}
	params.Set("type", "ipsw")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequest("GET", endpoint.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating catalog request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog GET /device/%s", product)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, errors.Errorf("catalog GET /device/%s returned unexpected status %d: %s", product, resp.StatusCode, string(respBody))
	}

	var device DeviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&device); err != nil {
		return nil, errors.Wrap(err, "decoding catalog response")
	}

	return &device, nil
}
