package tryon

import (
	"net/http"
	"net/url"
	"strings"

	"tryonapi/config"
)

const (
	// RelayRoutePath is the generation route served by the relay endpoint.
	RelayRoutePath = "/api/seedream/generate"
	// DevProxyPath is the prefix the development forwarding rule rewrites to
	// the provider path.
	DevProxyPath = "/api/seedream"
	// APIKeyHeader carries the caller credential to the relay endpoint.
	APIKeyHeader = "x-seedream-api-key"
)

type TargetKind int

const (
	TargetDirect TargetKind = iota
	TargetRelay
	TargetDevProxy
)

func (k TargetKind) String() string {
	switch k {
	case TargetRelay:
		return "relay"
	case TargetDevProxy:
		return "dev-proxy"
	default:
		return "direct"
	}
}

// Target is where generation requests go and how the credential is attached.
type Target interface {
	Kind() TargetKind
	Endpoint() string
	Authorize(h http.Header, apiKey string)
}

// directTarget calls the provider (or a non-relay URL) with a bearer token.
type directTarget struct {
	endpoint string
}

func (t directTarget) Kind() TargetKind { return TargetDirect }
func (t directTarget) Endpoint() string { return t.endpoint }
func (t directTarget) Authorize(h http.Header, apiKey string) {
	h.Set("Authorization", "Bearer "+apiKey)
}

// relayTarget calls the relay endpoint, which expects the key in APIKeyHeader.
type relayTarget struct {
	endpoint string
}

func (t relayTarget) Kind() TargetKind { return TargetRelay }
func (t relayTarget) Endpoint() string { return t.endpoint }
func (t relayTarget) Authorize(h http.Header, apiKey string) {
	h.Set(APIKeyHeader, apiKey)
}

// devProxyTarget calls the development forwarding rule; headers pass through
// it untouched so the provider still sees a bearer token.
type devProxyTarget struct {
	endpoint string
}

func (t devProxyTarget) Kind() TargetKind { return TargetDevProxy }
func (t devProxyTarget) Endpoint() string { return t.endpoint }
func (t devProxyTarget) Authorize(h http.Header, apiKey string) {
	h.Set("Authorization", "Bearer "+apiKey)
}

// ResolveTarget picks the target for a client. It is evaluated once per
// client, never per request.
func ResolveTarget(cfg config.ClientConfig) Target {
	if cfg.DevMode {
		base := cfg.DevServerURL
		if base == "" {
			base = config.DefaultDevServerURL
		}
		return devProxyTarget{endpoint: strings.TrimRight(base, "/") + DevProxyPath}
	}
	if cfg.RelayURL != "" && isRelayRoute(cfg.RelayURL) {
		return relayTarget{endpoint: cfg.RelayURL}
	}
	endpoint := cfg.RelayURL
	if endpoint == "" {
		endpoint = cfg.ProviderURL
	}
	if endpoint == "" {
		endpoint = config.DefaultProviderURL
	}
	return directTarget{endpoint: endpoint}
}

func isRelayRoute(raw string) bool {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return strings.Contains(u.Path, RelayRoutePath)
	}
	return strings.Contains(raw, RelayRoutePath)
}
