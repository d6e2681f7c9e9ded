package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const deviceKeyHeader = "X-API-Key"

// DeviceKeyMiddleware authenticates reporting devices with a shared API key.
// Devices cannot hold per-user credentials, so the firmware ships one key for
// the whole fleet.
type DeviceKeyMiddleware struct {
	Key []byte
}

// NewDeviceKeyMiddleware constructs device key middleware.
func NewDeviceKeyMiddleware(key []byte) *DeviceKeyMiddleware {
	return &DeviceKeyMiddleware{Key: key}
}

// Wrap enforces the device API key on the handler.
func (m *DeviceKeyMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.Key) == 0 {
			http.Error(w, "device auth not configured", http.StatusUnauthorized)
			return
		}
		presented := strings.TrimSpace(r.Header.Get(deviceKeyHeader))
		if presented == "" {
			http.Error(w, "missing api key", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), m.Key) != 1 {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
