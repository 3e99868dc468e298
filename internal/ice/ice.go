package ice

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/carlmjohnson/requests"

	"github.com/healthverse/care-relay/internal/config"
	pkglog "github.com/healthverse/care-relay/pkg/log"
)

// DefaultSTUN is always offered when no STUN server is configured.
const DefaultSTUN = "stun:stun.l.google.com:19302"

const cloudflareTURNEndpoint = "https://rtc.live.cloudflare.com/v1/turn/keys/%s/credentials/generate"

// Server is an ICE server entry as consumed by RTCPeerConnection.
type Server struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// Option customises a Provider.
type Option func(*Provider)

// WithEndpoint overrides the TURN credential endpoint. format receives the
// key id through fmt.Sprintf.
func WithEndpoint(format string) Option {
	return func(p *Provider) { p.endpoint = format }
}

// WithHTTPClient overrides the client used for TURN credential requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider assembles the ICE server list handed to browser peers. TURN
// credentials are fetched from Cloudflare and cached for half their TTL.
type Provider struct {
	static   []Server
	keyID    string
	key      string
	ttl      time.Duration
	endpoint string
	client   *http.Client

	mu      sync.Mutex
	turn    *Server
	expires time.Time
}

// NewProvider creates a Provider from the webrtc config section.
func NewProvider(cfg config.WebRTCConfig, opts ...Option) *Provider {
	static := make([]Server, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		static = append(static, Server{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	ttl := cfg.TurnTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	p := &Provider{
		static:   static,
		keyID:    cfg.TurnKeyID,
		key:      cfg.TurnKey,
		ttl:      ttl,
		endpoint: cloudflareTURNEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TURNConfigured reports whether Cloudflare TURN credentials are set.
func (p *Provider) TURNConfigured() bool {
	return p.keyID != "" && p.key != ""
}

// Servers returns the configured servers, the Cloudflare TURN entry when
// available, and a STUN fallback when none of them is a STUN server.
func (p *Provider) Servers(ctx context.Context) []Server {
	servers := append([]Server(nil), p.static...)

	if p.TURNConfigured() {
		turn, err := p.turnServer(ctx)
		if err != nil {
			l := pkglog.Ctx(ctx)
			l.Warn().Err(err).Str("turn_key_id", p.keyID).Msg("failed to get Cloudflare TURN credentials")
		} else {
			servers = append(servers, *turn)
		}
	}

	if !hasSTUN(servers) {
		servers = append([]Server{{URLs: []string{DefaultSTUN}}}, servers...)
	}
	return servers
}

type turnRequest struct {
	TTL int64 `json:"ttl"`
}

type cloudflareTURNResponse struct {
	ICEServers struct {
		URLs       []string `json:"urls"`
		Username   string   `json:"username"`
		Credential string   `json:"credential"`
	} `json:"iceServers"`
}

func (p *Provider) turnServer(ctx context.Context) (*Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.turn != nil && time.Now().Before(p.expires) {
		return p.turn, nil
	}

	var resp cloudflareTURNResponse
	err := requests.
		URL(fmt.Sprintf(p.endpoint, p.keyID)).
		Client(p.client).
		Post().
		Bearer(p.key).
		BodyJSON(&turnRequest{TTL: int64(p.ttl / time.Second)}).
		// Cloudflare returns 201 on success
		CheckStatus(http.StatusOK, http.StatusCreated).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to call TURN API: %w", err)
	}
	if len(resp.ICEServers.URLs) == 0 {
		return nil, fmt.Errorf("TURN API returned no urls")
	}

	p.turn = &Server{
		URLs:       resp.ICEServers.URLs,
		Username:   resp.ICEServers.Username,
		Credential: resp.ICEServers.Credential,
	}
	p.expires = time.Now().Add(p.ttl / 2)
	return p.turn, nil
}

func hasSTUN(servers []Server) bool {
	for _, s := range servers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "stun:") || strings.HasPrefix(u, "stuns:") {
				return true
			}
		}
	}
	return false
}

// MaskKey masks a key for logging purposes.
func MaskKey(key string) string {
	if key == "" {
		return "<empty>"
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
