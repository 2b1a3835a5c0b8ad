package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

const redacted = "[redacted]"

// secretKeys never reach log output with their values.
var secretKeys = map[string]struct{}{
	"api_key":       {},
	"api_token":     {},
	"authorization": {},
	"password":      {},
	"token":         {},
}

// redactValue masks secrets by key and strips passwords from connection URLs
// such as postgres:// and redis:// strings.
func redactValue(key string, v slog.Value) slog.Value {
	if _, ok := secretKeys[strings.ToLower(key)]; ok {
		return slog.StringValue(redacted)
	}
	if v.Kind() != slog.KindString {
		return v
	}
	s := v.String()
	if !strings.Contains(s, "://") || !strings.Contains(s, "@") {
		return v
	}
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return v
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return v
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return slog.StringValue(u.String())
}
