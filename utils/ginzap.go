package utils

import (
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cppla/myblog/config"
)

// NewAccessLogger builds the request logger. It writes JSON lines to
// cfg.GinPath through its own lumberjack file, apart from the application log.
func NewAccessLogger(cfg config.AppConfig) (*zap.Logger, error) {
	if cfg.GinPath == "" {
		return nil, errors.New("gin log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.GinPath), 0o755); err != nil {
		return nil, err
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	fileCfg := cfg
	fileCfg.LogPath = cfg.GinPath
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(rollingFile(fileCfg)),
		level,
	)
	return zap.New(core), nil
}

// Ginzap logs one line per request: errors at error level, 4xx/5xx at warn, the rest at info.
func Ginzap(logger *zap.Logger, timeFormat string, utc bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		c.Next()

		end := time.Now()
		if utc {
			end = end.UTC()
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", end.Sub(start)),
			zap.String("time", end.Format(timeFormat)),
		}
		switch {
		case len(c.Errors) > 0:
			for _, e := range c.Errors.Errors() {
				logger.Error(e, fields...)
			}
		case status >= http.StatusBadRequest:
			logger.Warn(path, fields...)
		default:
			logger.Info(path, fields...)
		}
	}
}

// RecoveryWithZap turns panics into a 500 envelope and logs them. Broken
// client connections are logged without writing a response.
func RecoveryWithZap(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			brokenPipe := false
			if ne, ok := err.(*net.OpError); ok {
				var se *os.SyscallError
				if errors.As(ne, &se) {
					msg := strings.ToLower(se.Error())
					brokenPipe = strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
				}
			}
			request, _ := httputil.DumpRequest(c.Request, false)
			fields := []zap.Field{
				zap.Any("error", err),
				zap.String("request", string(request)),
			}
			if stack {
				fields = append(fields, zap.ByteString("stack", debug.Stack()))
			}
			logger.Error("[Recovery from panic]", fields...)
			if brokenPipe {
				_ = c.Error(errors.New("broken pipe"))
				c.Abort()
				return
			}
			Error(c, http.StatusInternalServerError, 50000, "internal server error")
			c.Abort()
		}()
		c.Next()
	}
}
