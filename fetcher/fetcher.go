package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/udiddirector/udiddirector/ipsw"
	"github.com/udiddirector/udiddirector/types"
)

// Mode selects how a resolved device is handed to the completion callback.
type Mode string

const (
	// ModeCorrelated stores the resolved device under a fresh id and
	// defers the callback to the /final step, correlated by flow token.
	// This is the canonical mode.
	ModeCorrelated Mode = "correlated"

	// ModeDirect invokes the callback as soon as the device resolves at
	// /enrollment and then redirects to DoneURL. Direct-mode callbacks
	// must not write the response; the handler issues the redirect.
	ModeDirect Mode = "direct"
)

// DoneFunc is the completion callback. It receives the original request
// with the resolved identity attached to its context (DeviceFromContext)
// and, in correlated mode, is responsible for producing the response.
type DoneFunc func(w http.ResponseWriter, r *http.Request)

// Config carries the service configuration for a Fetcher.
type Config struct {
	// Profile display metadata written into every generated profile.
	Name              string
	Organization      string
	Description       string
	PayloadIdentifier string

	// URL is the externally reachable base URL of this server. The
	// redirect hops are built relative to it.
	URL string

	// Query holds fixed query parameters propagated through every hop.
	Query map[string]string

	// ProfilePath locates the mobileconfig template on disk.
	ProfilePath string

	Mode    Mode
	DoneURL string
	Done    DoneFunc

	// Signer signs generated profiles when set; nil serves them plain.
	Signer *ProfileSigner

	// Catalog resolves product codes to firmware metadata. Defaults to
	// the public ipsw.me API.
	Catalog ipsw.CatalogClient

	// StoreSize bounds the flow token and device registries.
	StoreSize int
}

// Fetcher orchestrates the enroll -> confirm -> enrollment -> final
// redirect workflow.
type Fetcher struct {
	config  Config
	flows   *FlowStore
	devices *DeviceStore
}

// New validates the configuration and creates a Fetcher.
func New(config Config) (*Fetcher, error) {
	if config.URL == "" {
		return nil, errors.New("fetcher: server URL is required")
	}
	if config.Done == nil {
		return nil, errors.New("fetcher: completion callback is required")
	}
	if config.Mode == "" {
		config.Mode = ModeCorrelated
	}
	if config.Mode != ModeCorrelated && config.Mode != ModeDirect {
		return nil, errors.Errorf("fetcher: unknown mode %q", config.Mode)
	}
	if config.Mode == ModeDirect && config.DoneURL == "" {
		return nil, errors.New("fetcher: direct mode requires a done URL")
	}
	if config.ProfilePath == "" {
		config.ProfilePath = "enrollment.mobileconfig"
	}
	if config.StoreSize <= 0 {
		config.StoreSize = DefaultStoreSize
	}
	if config.Catalog == nil {
		config.Catalog = ipsw.NewClient(ipsw.DefaultBaseURL)
	}

	flows, err := NewFlowStore(config.StoreSize)
	if err != nil {
		return nil, err
	}
	devices, err := NewDeviceStore(config.StoreSize)
	if err != nil {
		return nil, err
	}

	return &Fetcher{
		config:  config,
		flows:   flows,
		devices: devices,
	}, nil
}

// endpointURL builds an absolute URL for one of the workflow endpoints.
func (f *Fetcher) endpointURL(endpoint string, query url.Values) (*url.URL, error) {
	u, err := url.Parse(f.config.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing server URL")
	}
	u.Path = path.Join(u.Path, endpoint)
	u.RawQuery = query.Encode()
	return u, nil
}

// isProfileContext reports whether the request was made by the
// profile-installation user agent rather than a regular browser.
func isProfileContext(r *http.Request) bool {
	return strings.Contains(r.UserAgent(), "Profile")
}

type contextKey int

const deviceContextKey contextKey = 0

// NewDeviceContext returns a context carrying a resolved device identity.
func NewDeviceContext(ctx context.Context, device types.DeviceIdentity) context.Context {
	return context.WithValue(ctx, deviceContextKey, device)
}

// DeviceFromContext extracts the resolved device identity attached by the
// final handler.
func DeviceFromContext(ctx context.Context) (types.DeviceIdentity, bool) {
	device, ok := ctx.Value(deviceContextKey).(types.DeviceIdentity)
	return device, ok
}
