package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/langchou/meterbook/internal/auth"
)

const claimsKey = "claims"

// tokenFrom 优先读取 cookie，其次 Authorization: Bearer
func tokenFrom(c *gin.Context) string {
	if token, err := c.Cookie(AuthCookie); err == nil && token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireAuth 校验会话令牌
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c)
		if token == "" {
			fail(c, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := h.authService.Authenticate(token)
		if err != nil {
			fail(c, http.StatusUnauthorized, "Invalid or expired session")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireAdmin 仅允许管理员，需在 RequireAuth 之后使用
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := currentClaims(c)
		if claims == nil || !claims.IsAdmin() {
			fail(c, http.StatusForbidden, "Admin access required")
			return
		}
		c.Next()
	}
}

// RateLimit 全局令牌桶限流，rps <= 0 时不限流
func RateLimit(logger *zap.Logger, rps int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiter := rate.NewLimiter(rate.Limit(rps), rps*2)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			logger.Warn("Rate limit exceeded", zap.String("client_ip", c.ClientIP()), zap.String("path", c.Request.URL.Path))
			fail(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) *auth.Claims {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// userID 当前登录用户 ID
func userID(c *gin.Context) int64 {
	if claims := currentClaims(c); claims != nil {
		return claims.UserID
	}
	return 0
}

// CORS 仅对白名单内的来源返回跨域头；白名单含 "*" 时允许任意来源但不携带凭证
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origin != "" && allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		case allowed["*"]:
			c.Header("Access-Control-Allow-Origin", "*")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
