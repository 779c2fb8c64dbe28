package oauth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultCallbackTimeout is how long to wait for the OAuth callback.
const DefaultCallbackTimeout = 2 * time.Minute

// callbackResponseBody is served to the browser after the redirect. The
// outcome of the flow is reported on the terminal, not in the browser.
const callbackResponseBody = "OAuth complete. You can close this window and return to the terminal."

// CallbackResult holds the query parameters extracted from the single
// callback request.
type CallbackResult struct {
	// Code is the authorization code from the authorization server.
	Code string

	// State is the state parameter to verify against the pending flow.
	State string

	// Error is the error code if the authorization failed.
	Error string
}

// CallbackServer is a temporary loopback HTTP server for receiving one
// OAuth callback. It re-binds the port reserved during flow preparation,
// waits for a single request on /callback, then shuts down.
type CallbackServer struct {
	port     int
	server   *http.Server
	listener net.Listener
	resultCh chan *CallbackResult
	errorCh  chan error
	once     sync.Once
}

// NewCallbackServer creates a callback server for a previously reserved
// port. The port must match the redirect URI embedded in the
// authorization URL.
func NewCallbackServer(port int) *CallbackServer {
	return &CallbackServer{
		port:     port,
		resultCh: make(chan *CallbackResult, 1),
		errorCh:  make(chan error, 1),
	}
}

// Start binds the reserved port and begins listening for the callback.
// The bind must succeed on exactly that port: the redirect URI is already
// fixed, so falling back to a different port would break the flow. The
// server stops when the context is cancelled.
func (s *CallbackServer) Start(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind callback port %s: %w", addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// WaitForCallback blocks until the callback arrives, the timeout
// elapses, or the context is cancelled. On timeout the returned error is
// a CallbackTimeoutError; the caller's pending flow remains usable for
// manual completion.
func (s *CallbackServer) WaitForCallback(ctx context.Context, timeout time.Duration) (*CallbackResult, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-timer.C:
		return nil, &CallbackTimeoutError{Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleCallback handles the callback request. Only the first request is
// processed; the port may still receive late requests after the waiter
// has returned.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})

	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

// processCallback extracts the query parameters, responds to the
// browser, and delivers the result. Called exactly once via sync.Once.
func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	query := r.URL.Query()
	result := &CallbackResult{
		Code:  query.Get("code"),
		State: query.Get("state"),
		Error: query.Get("error"),
	}

	fmt.Fprint(w, callbackResponseBody)

	select {
	case s.resultCh <- result:
	default:
	}

	// Give the response time to flush before shutting down.
	go func() {
		time.Sleep(time.Second)
		s.Stop()
	}()
}

// Stop gracefully shuts down the callback server.
func (s *CallbackServer) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// Port returns the port the server binds.
func (s *CallbackServer) Port() int {
	return s.port
}
