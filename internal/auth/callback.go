package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/2beens/withings2weeks/internal/middleware"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

var (
	ErrAuthorizationTimedOut = errors.New("did not receive authorization code in time, run the authorization flow again")
	ErrStateMismatch         = errors.New("authorization state mismatch")
	ErrAuthorizationDenied   = errors.New("authorization denied")
)

type callbackResult struct {
	code string
	err  error
}

// CallbackListener serves the OAuth redirect URI until one authorization
// code arrives.
type CallbackListener struct {
	addr          string
	path          string
	expectedState string

	server   *http.Server
	listener net.Listener
	results  chan callbackResult
	served   chan struct{}
}

func NewCallbackListener(redirectURI, expectedState string) (*CallbackListener, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect uri: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("redirect uri %q: only plain http callbacks can be served locally", redirectURI)
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	l := &CallbackListener{
		addr:          net.JoinHostPort(host, port),
		path:          path,
		expectedState: expectedState,
		results:       make(chan callbackResult, 1),
		served:        make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc(path, l.handleCallback).Methods(http.MethodGet)
	r.Use(middleware.PanicRecovery())
	r.Use(middleware.LogRequest())
	l.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return l, nil
}

// Start binds the listener and serves in the background.
func (l *CallbackListener) Start() error {
	listener, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.addr, err)
	}
	l.listener = listener
	log.Debugf("waiting for authorization callback on http://%s%s", listener.Addr(), l.path)

	go func() {
		defer close(l.served)
		if err := l.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("callback server: %s", err)
		}
	}()
	return nil
}

// Addr returns the bound address, which differs from the configured one for port 0.
func (l *CallbackListener) Addr() string {
	if l.listener == nil {
		return l.addr
	}
	return l.listener.Addr().String()
}

// Wait blocks until a code arrives, timeout passes or ctx is done. The server
// is shut down before Wait returns.
func (l *CallbackListener) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	defer l.shutdown()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-l.results:
		return res.code, res.err
	case <-timer.C:
		return "", ErrAuthorizationTimedOut
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (l *CallbackListener) shutdown() {
	if l.listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown callback server: %s", err)
	}
	<-l.served
}

func (l *CallbackListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		http.Error(w, "Authorization was denied.", http.StatusBadRequest)
		l.deliver(callbackResult{err: fmt.Errorf("%w: %s", ErrAuthorizationDenied, errCode)})
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "No authorization code found.", http.StatusBadRequest)
		return
	}

	if query.Get("state") != l.expectedState {
		http.Error(w, "Authorization state does not match.", http.StatusBadRequest)
		l.deliver(callbackResult{err: ErrStateMismatch})
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("Authorization successful. You can close this window."))
	l.deliver(callbackResult{code: code})
}

// deliver keeps the first result, later callbacks are ignored.
func (l *CallbackListener) deliver(res callbackResult) {
	select {
	case l.results <- res:
	default:
	}
}
