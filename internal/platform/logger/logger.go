package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin key/value wrapper over zap's SugaredLogger. Its method set
// also satisfies the Temporal SDK logger interface.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

// New builds a logger for the given mode: "production"/"prod" emits JSON,
// "test"/"nop" discards everything, anything else is the development console
// encoder. LOG_LEVEL overrides the default debug level.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "test", "nop":
		return Nop(), nil
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(levelFromEnv())
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

// Nop returns a logger that drops all entries.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func levelFromEnv() zapcore.Level {
	raw := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if raw == "" {
		return zap.DebugLevel
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
		return zap.DebugLevel
	}
	return lvl
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, sanitizeKVs(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(sanitizeKVs(keysAndValues)...)}
}

// redactPolicy decides how each logged value is rewritten. Keys are matched
// case-insensitively by substring.
type redactPolicy struct {
	enabled bool
	redact  []string
	hash    []string
	salt    string
}

const redacted = "[REDACTED]"

var (
	policyOnce sync.Once
	policy     redactPolicy
)

// activePolicy reads LOG_REDACTION_ENABLED, LOG_HASH_SALT and the optional
// LOG_REDACT_KEYS extension list once per process.
func activePolicy() redactPolicy {
	policyOnce.Do(func() {
		policy = redactPolicy{
			enabled: true,
			redact:  []string{"token", "authorization", "password", "secret", "api_key", "apikey", "cookie", "email", "phone"},
			hash:    []string{"user_id", "guest_id"},
			salt:    strings.TrimSpace(os.Getenv("LOG_HASH_SALT")),
		}
		switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			policy.enabled = false
		}
		for _, k := range strings.Split(os.Getenv("LOG_REDACT_KEYS"), ",") {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				policy.redact = append(policy.redact, k)
			}
		}
	})
	return policy
}

func sanitizeKVs(kv []interface{}) []interface{} {
	p := activePolicy()
	if len(kv) == 0 || !p.enabled {
		return kv
	}
	out := make([]interface{}, len(kv))
	copy(out, kv)
	for i := 0; i+1 < len(out); i += 2 {
		key := toString(out[i])
		out[i] = key
		out[i+1] = p.apply(strings.ToLower(strings.TrimSpace(key)), out[i+1])
	}
	return out
}

func sanitizeValue(key string, val interface{}) interface{} {
	return activePolicy().apply(key, val)
}

func (p redactPolicy) apply(key string, val interface{}) interface{} {
	switch {
	case key == "":
		return val
	case matchesAny(key, p.redact):
		return redacted
	case matchesAny(key, p.hash):
		return p.digest(val)
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = p.apply(strings.ToLower(strings.TrimSpace(k)), inner)
		}
		return out
	case string:
		if looksLikeJWT(v) {
			return redacted
		}
	}
	return val
}

func matchesAny(key string, frags []string) bool {
	for _, f := range frags {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

// digest keeps ids correlatable across log lines without exposing them.
func (p redactPolicy) digest(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(p.salt + raw))
	return "hash:" + hex.EncodeToString(sum[:])[:12]
}

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
