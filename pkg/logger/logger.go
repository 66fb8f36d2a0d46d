package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	mu    sync.RWMutex
	sugar = zap.NewNop().Sugar()
)

// Init builds the process-wide logger. "production" emits JSON at info level,
// anything else uses the development console encoder at debug level.
func Init(env string) {
	var cfg zap.Config
	switch strings.ToLower(env) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		zl = zap.NewExample()
	}

	mu.Lock()
	sugar = zl.Sugar()
	mu.Unlock()
}

// Set replaces the underlying logger, mostly for tests.
func Set(l *zap.Logger) {
	mu.Lock()
	sugar = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	mu.Unlock()
}

func Sync() {
	_ = current().Sync()
}

func Debug(msg string, kv ...interface{}) { current().Debugw(msg, sanitize(kv)...) }
func Info(msg string, kv ...interface{})  { current().Infow(msg, sanitize(kv)...) }
func Warn(msg string, kv ...interface{})  { current().Warnw(msg, sanitize(kv)...) }
func Error(msg string, kv ...interface{}) { current().Errorw(msg, sanitize(kv)...) }
func Fatal(msg string, kv ...interface{}) { current().Fatalw(msg, sanitize(kv)...) }

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// sanitize redacts secrets and hashes visitor identifiers so raw network
// origins and session ids never land in log storage.
func sanitize(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			// odd trailing value, usually an error passed without a key
			out = append(out, "detail", kv[i])
			break
		}
		key := strings.ToLower(fmt.Sprint(kv[i]))
		out = append(out, kv[i], sanitizeValue(key, kv[i+1]))
	}
	return out
}

func sanitizeValue(key string, val interface{}) interface{} {
	switch {
	case strings.Contains(key, "token"),
		strings.Contains(key, "password"),
		strings.Contains(key, "secret"),
		strings.Contains(key, "authorization"):
		return "[REDACTED]"
	case strings.Contains(key, "session_id"),
		strings.Contains(key, "user_id"),
		key == "origin", key == "ip":
		return hash(val)
	}
	return val
}

func hash(val interface{}) string {
	raw := fmt.Sprint(val)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(raw))
	return "hash:" + hex.EncodeToString(sum[:])[:12]
}
