package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zulandar/labyard/internal/auth"
	"github.com/zulandar/labyard/internal/metrics"
	"go.uber.org/zap"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	identityKey     = "identity"
)

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Logger writes one structured line per request. 5xx log at error, 4xx at warn.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		if id, ok := identityFrom(c); ok {
			fields = append(fields, zap.String("user_id", id.Subject))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// Metrics counts requests by route template so ids do not explode the label set.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// JWTAuth requires a valid bearer token. The token may also arrive as a
// ?token= query parameter for download links.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if h := c.GetHeader("Authorization"); h != "" {
			parts := strings.SplitN(h, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				abort(c, http.StatusUnauthorized, "unauthorized", "malformed authorization header")
				return
			}
			token = parts[1]
		} else {
			token = c.Query("token")
		}
		if token == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}

		id, err := auth.Parse(secret, token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole lets through only identities holding one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityFrom(c)
		if !ok || !id.Can(roles...) {
			abort(c, http.StatusForbidden, "forbidden", "role not permitted: requires one of "+strings.Join(roles, ", "))
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// caller returns the authenticated subject; routes behind JWTAuth always have one.
func caller(c *gin.Context) string {
	id, _ := identityFrom(c)
	return id.Subject
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": code, "message": message})
}
