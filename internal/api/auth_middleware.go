package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"textflow/internal/domain/automation/port"
	applog "textflow/internal/platform/log"
)

// JWTConfig JWT 鉴权配置
type JWTConfig struct {
	Secret string // HMAC 签名密钥
	Issuer string // 可选签发者校验
}

// authMiddleware JWT 鉴权中间件。
// 验证 Authorization: Bearer <token>，提取 account_id 并校验账户有效，
// 将 Scope 注入 context。
func authMiddleware(cfg *JWTConfig, repo port.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}
			tokenStr := parts[1]

			parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
			if cfg.Issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
			}

			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(cfg.Secret), nil
			}, parserOpts...)

			if err != nil || !token.Valid {
				applog.Warn("[Auth] Invalid JWT token", "error", err)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			accountID, _ := claims["account_id"].(string)
			subject, _ := claims["sub"].(string)
			if accountID == "" {
				writeError(w, http.StatusForbidden, "missing account_id in token")
				return
			}

			acc, err := repo.GetAccount(r.Context(), accountID)
			if err != nil {
				applog.Error("[Auth] Account lookup failed", "error", err)
				writeError(w, http.StatusInternalServerError, "failed to validate account")
				return
			}
			if acc == nil {
				writeError(w, http.StatusForbidden, "invalid account_id in token")
				return
			}
			if acc.Status != "" && !strings.EqualFold(acc.Status, "active") {
				writeError(w, http.StatusForbidden, "account is not active")
				return
			}

			ctx := WithScope(r.Context(), &Scope{AccountID: accountID, Subject: subject})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
