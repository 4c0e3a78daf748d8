// Package security はアウトバウンド通信の保護とテキストのサニタイズを提供する。
package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuard は外部API呼び出しに使うHTTPクライアントとエンドポイント検証を提供する。
// Neynar APIとチャンネルディレクトリの取得で使用される。
type OutboundGuard interface {
	// NewSafeClient はプライベートIP等への接続をDialerレベルで拒否するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL は設定されたエンドポイントURLを静的に検証する。
	ValidateURL(rawURL string) error
}

// blockedPrefixes は接続を拒否するネットワーク範囲。
// safeurlはDNS解決後のIPも検証するため、ここでの検証は設定値の事前チェック用。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// ssrfGuard はOutboundGuardの実装。
type ssrfGuard struct {
	schemes []string
	ports   []int
}

// NewSSRFGuard はhttp/httpsの80/443番ポートのみを許可するOutboundGuardを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{
		schemes: []string{"http", "https"},
		ports:   []int{80, 443},
	}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを生成する。
// ループバック、プライベート、リンクローカル、メタデータIPへの接続はブロックされる。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(g.schemes...).
		SetAllowedPorts(g.ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はスキーム、ホスト、IPアドレスを検証する。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !g.allowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", scheme, g.schemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("blocked IP address: %s", addr)
			}
		}
	}

	return nil
}

func (g *ssrfGuard) allowedScheme(scheme string) bool {
	for _, s := range g.schemes {
		if s == scheme {
			return true
		}
	}
	return false
}
