package httpapi

import (
	"context"
	"net/http"
	"sync"
)

var (
	baseMu  sync.RWMutex
	baseCtx = context.Background()
)

// SetBaseContext installs the process context whose cancellation ends every
// open event stream. http.Server.Shutdown waits on those streams but never
// cancels them. A nil ctx restores context.Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	baseMu.Lock()
	baseCtx = ctx
	baseMu.Unlock()
}

func baseContext() context.Context {
	baseMu.RLock()
	defer baseMu.RUnlock()
	return baseCtx
}

// streamContext scopes a long-lived response: it ends with the request or
// with the base context, whichever is first.
func streamContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(baseContext(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
