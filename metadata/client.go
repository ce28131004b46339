package metadata

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/guregu/null.v3"
)

const (
	// RetryInterval is the default wait between no-response retries.
	RetryInterval = 500 * time.Millisecond
	// MaxRetries is the default retry budget for plain metadata fetches. The
	// availability probe uses the configured DETECT_GCP_RETRIES budget
	// instead, which defaults to zero.
	MaxRetries = 3
)

// Client talks to the GCE metadata server.
type Client struct {
	client *http.Client
	logger logrus.FieldLogger
	config Config

	// host is the explicit address override given to NewClient. It wins over
	// the config's env-derived overrides. Empty means resolve per call.
	host string

	retries       int
	retryInterval time.Duration

	// timeout, when set, pins the per-request bound instead of the
	// residency-derived policy.
	timeout *time.Duration

	// fs and netInterfaces exist so residency detection is testable without
	// a real GCE machine.
	fs            afero.Fs
	netInterfaces func() ([]net.Interface, error)

	availMu sync.Mutex
	avail   *availCall

	resMu     sync.Mutex
	residency null.Bool
}

// NewClient returns a new metadata client. host explicitly pins the metadata
// server address and may be empty, in which case the address is resolved from
// the config on every call.
func NewClient(logger logrus.FieldLogger, host string, config Config) *Client {
	return &Client{
		client:        &http.Client{},
		logger:        logger,
		config:        config,
		host:          host,
		retries:       MaxRetries,
		retryInterval: RetryInterval,
		fs:            afero.NewOsFs(),
		netInterfaces: net.Interfaces,
	}
}

type getOptions struct {
	property string
	params   url.Values
	headers  http.Header
}

// GetOption customizes a single metadata fetch.
type GetOption func(*getOptions) error

// WithProperty asks for a sub-property of the resource, e.g. "id" or
// "network-interfaces/0/ip". Nested paths are allowed; a leading slash or an
// empty name is a configuration error.
func WithProperty(property string) GetOption {
	return func(o *getOptions) error {
		if property == "" {
			return &ConfigError{Field: "property", Msg: "must not be empty"}
		}
		if strings.HasPrefix(property, "/") || strings.HasSuffix(property, "/") {
			return &ConfigError{Field: "property", Msg: "must not start or end with a slash"}
		}
		o.property = property
		return nil
	}
}

// WithParams adds query parameters, e.g. recursive=true or wait_for_change.
func WithParams(params url.Values) GetOption {
	return func(o *getOptions) error {
		o.params = params
		return nil
	}
}

// WithHeaders adds extra request headers. Overriding the Metadata-Flavor
// header is a configuration error since the server rejects requests without
// the genuine value.
func WithHeaders(headers http.Header) GetOption {
	return func(o *getOptions) error {
		if v := headers.Get(flavorHeader); v != "" && v != flavorValue {
			return &ConfigError{Field: "headers", Msg: "must not override the " + flavorHeader + " header"}
		}
		o.headers = headers
		return nil
	}
}

func buildGetOptions(opts []GetOption) (getOptions, error) {
	o := getOptions{}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return o, err
		}
	}
	return o, nil
}

// Get fetches the named metadata resource, usually "instance" or "project".
// Option validation errors surface before any request is sent.
func (c *Client) Get(ctx context.Context, resource string, opts ...GetOption) (*Value, error) {
	o, err := buildGetOptions(opts)
	if err != nil {
		return nil, err
	}
	if resource == "" {
		return nil, &ConfigError{Field: "resource", Msg: "must not be empty"}
	}
	return c.fetch(ctx, baseURL(c.resolveHost()), resource, o, c.retries)
}

// Instance fetches instance metadata.
func (c *Client) Instance(ctx context.Context, opts ...GetOption) (*Value, error) {
	return c.Get(ctx, "instance", opts...)
}

// Project fetches project metadata.
func (c *Client) Project(ctx context.Context, opts ...GetOption) (*Value, error) {
	return c.Get(ctx, "project", opts...)
}

// resolveHost picks the metadata server address for this call: the explicit
// NewClient argument, then GCE_METADATA_IP, then GCE_METADATA_HOST, then the
// built-in link-local address. Never cached, so env-derived overrides applied
// through a fresh Config take effect immediately.
func (c *Client) resolveHost() string {
	if c.host != "" {
		return c.host
	}
	if host, ok := c.config.addressOverride(); ok {
		return host
	}
	return primaryHost
}

// baseURL normalizes host into a full metadata base URL, defaulting the
// scheme to http and appending the fixed API path.
func baseURL(host string) string {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return strings.TrimSuffix(host, "/") + basePath
}

// requestURL joins the base URL, resource and options into the final URL.
// Property segments are escaped individually, so reserved characters like "?"
// or "#" inside a segment cannot change the URL's meaning, while the slashes
// separating nested segments stay intact.
func requestURL(base, resource string, o getOptions) string {
	u := base + "/" + resource
	if o.property != "" {
		segments := strings.Split(o.property, "/")
		for i, s := range segments {
			segments[i] = url.PathEscape(s)
		}
		u += "/" + strings.Join(segments, "/")
	}
	if len(o.params) > 0 {
		u += "?" + o.params.Encode()
	}
	return u
}

// fetch runs the request with the given no-response retry budget. retries is
// the number of retries, not attempts, so zero still sends one request.
func (c *Client) fetch(ctx context.Context, base, resource string, o getOptions, retries int) (*Value, error) {
	urlStr := requestURL(base, resource, o)

	for attempt := 0; ; attempt++ {
		retry, val, err := c.do(ctx, urlStr, o.headers, attempt, retries)
		if retry {
			select {
			case <-time.After(c.retryInterval):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		return val, err
	}
}

func (c *Client) do(ctx context.Context, urlStr string, headers http.Header, attempt, retries int) (retry bool, _ *Value, err error) {
	if timeout := c.RequestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return false, nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set(flavorHeader, flavorValue)

	resp, err := c.client.Do(req)
	defer func() {
		if resp != nil {
			if cerr := resp.Body.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()

	if err != nil {
		if attempt < retries {
			return true, nil, nil
		}
		return false, nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, nil, err
	}

	if err := checkResponse(resp, body); err != nil {
		if retriableStatus(resp.StatusCode) && attempt < retries {
			return true, nil, nil
		}
		return false, nil, err
	}
	return false, newValue(string(body)), nil
}

// checkResponse enforces the metadata protocol on a completed response: the
// flavor header is validated before anything else so an impostor server is
// reported as such regardless of whatever status or body it produced.
func checkResponse(resp *http.Response, body []byte) error {
	if got := resp.Header.Get(flavorHeader); got != flavorValue {
		if got == "" {
			return &ProtocolError{Msg: "missing " + flavorHeader + " header"}
		}
		return &ProtocolError{Msg: fmt.Sprintf("unexpected %s header %q", flavorHeader, got)}
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if len(body) == 0 {
		return &ProtocolError{Msg: "empty response body"}
	}
	return nil
}

func retriableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}
