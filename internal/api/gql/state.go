package gql

import (
	"context"
	"sync"
	"time"
)

type stateKey struct{}

// requestState collects what resolvers ask the transport to do once execution ends.
// Query fields may resolve concurrently.
type requestState struct {
	mu sync.Mutex

	token   string
	expires time.Time
	cleared bool
	fatal   error
}

func withState(ctx context.Context, st *requestState) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(stateKey{}).(*requestState)
	return st
}

// issueSession asks for the session cookie to be set
func issueSession(ctx context.Context, token string, expires time.Time) {
	if st := stateFrom(ctx); st != nil {
		st.mu.Lock()
		st.token, st.expires, st.cleared = token, expires, false
		st.mu.Unlock()
	}
}

// clearSession asks for the session cookie to be cleared
func clearSession(ctx context.Context) {
	if st := stateFrom(ctx); st != nil {
		st.mu.Lock()
		st.token, st.cleared = "", true
		st.mu.Unlock()
	}
}

// markFatal turns the whole response into an HTTP 500. The first error wins.
func markFatal(ctx context.Context, err error) {
	if st := stateFrom(ctx); st != nil {
		st.mu.Lock()
		if st.fatal == nil {
			st.fatal = err
		}
		st.mu.Unlock()
	}
}

func (st *requestState) snapshot() (token string, expires time.Time, cleared bool, fatal error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.token, st.expires, st.cleared, st.fatal
}
