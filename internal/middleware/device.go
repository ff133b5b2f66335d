package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/estimax/estimax-api/internal/pkg/response"
)

type contextKey string

// DeviceIDKey is the context key holding the caller's device identifier
const DeviceIDKey contextKey = "device_id"

// DeviceHeader is the header anonymous clients identify themselves with
const DeviceHeader = "x-device-id"

const maxDeviceIDLength = 128

// DeviceID returns middleware that requires the x-device-id header.
// The device identifier is the caller's only credential; a request
// without one cannot be attributed to any wallet.
func DeviceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := strings.TrimSpace(r.Header.Get(DeviceHeader))
		if deviceID == "" {
			response.BadRequest(w, "missing x-device-id header")
			return
		}
		if len(deviceID) > maxDeviceIDLength {
			response.BadRequest(w, "invalid x-device-id header")
			return
		}

		ctx := context.WithValue(r.Context(), DeviceIDKey, deviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetDeviceID extracts the device identifier from context
func GetDeviceID(ctx context.Context) string {
	if id, ok := ctx.Value(DeviceIDKey).(string); ok {
		return id
	}
	return ""
}
