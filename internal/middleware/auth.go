package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/castradar/internal/model"
)

const bearerPrefix = "Bearer "

// BearerSecret はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーがない、または形式が異なる場合は空文字を返す。
func BearerSecret(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < len(bearerPrefix) || !strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(bearerPrefix):])
}

// SecretMatches は提示されたトークンと共有シークレットを定数時間で比較する。
func SecretMatches(presented, secret string) bool {
	if secret == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1
}

// NewSharedSecretMiddleware は共有シークレットによる認証ミドルウェアを返す。
// secretが空の場合は認証を行わない。不一致の場合は後続ハンドラを呼ばずに401を返す。
func NewSharedSecretMiddleware(secret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !SecretMatches(BearerSecret(r), secret) {
				logger.Warn("共有シークレットの検証に失敗しました",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
