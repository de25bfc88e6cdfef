package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/logger"
)

// Timeout cancels the request context after timeout and answers 504 if the
// handler has not started its response by then. Writes the handler makes
// after the deadline are dropped.
//
// The handler runs on its own goroutine. It gets a private header map that
// reaches the real response only when it writes, and a panic it raises is
// re-raised on the calling goroutine so that an outer Recover sees it.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			log := logger.FromContext(r.Context())

			tw := &timeoutWriter{w: w, h: w.Header().Clone()}
			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						tw.mu.Lock()
						late := tw.timedOut
						tw.mu.Unlock()
						if late {
							log.Error("handler panic after timeout", "path", r.URL.Path, "panic", p)
							return
						}
						panicked <- p
						return
					}
					close(done)
				}()
				next.ServeHTTP(tw, r.WithContext(ctx))
			}()

			select {
			case p := <-panicked:
				panic(p)
			case <-done:
				tw.mu.Lock()
				defer tw.mu.Unlock()
				if !tw.written {
					tw.copyHeader()
				}
			case <-ctx.Done():
				tw.mu.Lock()
				defer tw.mu.Unlock()
				tw.timedOut = true
				select {
				case p := <-panicked:
					log.Error("handler panic after timeout", "path", r.URL.Path, "panic", p)
				default:
				}
				if !tw.written {
					log.Warn("request timed out",
						"method", r.Method,
						"path", r.URL.Path,
						"timeout", timeout,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timeout"}`))
				}
			}
		})
	}
}

type timeoutWriter struct {
	w http.ResponseWriter
	h http.Header

	mu       sync.Mutex
	written  bool
	timedOut bool
}

// Header is only touched by the handler goroutine, and by the caller once
// that goroutine is done.
func (tw *timeoutWriter) Header() http.Header {
	return tw.h
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.written {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.written {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.w.Write(b)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	tw.written = true
	tw.copyHeader()
	tw.w.WriteHeader(code)
}

// copyHeader makes the real header map match the handler's, deletions
// included.
func (tw *timeoutWriter) copyHeader() {
	dst := tw.w.Header()
	clear(dst)
	for k, vv := range tw.h {
		dst[k] = vv
	}
}
