package httpapi

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes configures the maximum request body size; non-positive
// values restore the 1 MiB default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// subscriberBuffer is the number of events queued per /events client before
// the client is considered too slow and disconnected.
var subscriberBuffer = 256

// SetSubscriberBuffer sets the per-client event queue length; non-positive
// values restore the default.
func SetSubscriberBuffer(n int) {
	if n <= 0 {
		subscriberBuffer = 256
		return
	}
	subscriberBuffer = n
}

// CORS configuration (opt-in). With no origins, no CORS middleware is added.
var corsAllowedOrigins []string

// SetCORSOrigins configures the origins allowed to call the API from a browser.
func SetCORSOrigins(origins []string) {
	corsAllowedOrigins = append([]string(nil), origins...)
}
