package pim

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// AuthScheme selects how the client authenticates against the PIM endpoint
type AuthScheme string

const (
	// AuthSchemeBearer sends "Authorization: Bearer <token>"
	AuthSchemeBearer AuthScheme = "bearer"
	// AuthSchemeToken sends the token in a static API-token header
	AuthSchemeToken AuthScheme = "token"
)

const (
	// DefaultTokenHeader is the header used by AuthSchemeToken
	DefaultTokenHeader = "X-Api-Token"
	// DefaultTimeout is the per-call timeout
	DefaultTimeout = 30 * time.Second
	// DefaultPageSize is the page size used when none is configured
	DefaultPageSize = 100
	// MaxPageSize caps the page size sent to the remote
	MaxPageSize = 1000
	// DefaultRetryDelay is the initial page retry backoff
	DefaultRetryDelay = 500 * time.Millisecond
)

// Remote method names
const (
	MethodGetProducts         = "getProducts"
	MethodGetProductsByFilter = "getProductsByFilter"
	MethodGetGroupedProducts  = "getGroupedProducts"
)

// Errors for PIM configuration
var (
	ErrConfigMissingEndpoint   = errors.New("pim: endpoint is required")
	ErrConfigInvalidEndpoint   = errors.New("pim: endpoint must be an absolute http(s) URL")
	ErrConfigInvalidAuthScheme = errors.New("pim: auth scheme must be bearer or token")
	ErrConfigMissingToken      = errors.New("pim: auth token is required")
)

// Config holds the connection settings of the PIM JSON-RPC endpoint
type Config struct {
	// Endpoint is the JSON-RPC URL
	Endpoint string
	// AuthScheme selects exactly one authentication header
	AuthScheme AuthScheme
	// Token is the bearer token or API token, depending on AuthScheme
	Token string
	// TokenHeader names the header for AuthSchemeToken
	TokenHeader string
	// Timeout is the per-call HTTP timeout
	Timeout time.Duration
	// RequestsPerSecond limits outgoing calls, zero disables limiting
	RequestsPerSecond float64
	// Burst is the limiter burst size
	Burst int
	// RetryAttempts is how many times the Paginator retries a page after a
	// transport error
	RetryAttempts int
	// RetryDelay is the initial backoff between page retries
	RetryDelay time.Duration
}

// NewConfig creates a configuration with defaults
func NewConfig(endpoint string, scheme AuthScheme, token string) *Config {
	return &Config{
		Endpoint:    endpoint,
		AuthScheme:  scheme,
		Token:       token,
		TokenHeader: DefaultTokenHeader,
		Timeout:     DefaultTimeout,
	}
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return ErrConfigMissingEndpoint
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrConfigInvalidEndpoint
	}
	switch c.AuthScheme {
	case AuthSchemeBearer, AuthSchemeToken:
	default:
		return ErrConfigInvalidAuthScheme
	}
	if strings.TrimSpace(c.Token) == "" {
		return ErrConfigMissingToken
	}
	if c.TokenHeader == "" {
		c.TokenHeader = DefaultTokenHeader
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RequestsPerSecond < 0 {
		c.RequestsPerSecond = 0
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	if c.RetryAttempts > 0 && c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return nil
}
