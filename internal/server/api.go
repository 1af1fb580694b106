package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/fulldump/box"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Build mounts the records resource under /v1.
func Build(s *Server) *box.B {
	b := box.NewBox()

	v1 := b.Resource("/v1")
	v1.Resource("/records").
		WithActions(
			box.Get(s.listRecords).WithName("listRecords"),
		)

	b.Resource("/healthz").
		WithActions(
			box.Get(func() string { return "ok" }).WithName("healthz"),
		)

	return b
}

// AccessLog writes one line per request.
func AccessLog(l *log.Logger) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			r := box.GetRequest(ctx)
			now := time.Now()
			defer func() {
				l.Println(formatRemoteAddr(r), r.Method, r.URL.String(), time.Since(now))
			}()
			next(ctx)
		}
	}
}

func formatRemoteAddr(r *http.Request) string {
	xorigin := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-For"), ",")[0])
	if xorigin != "" {
		return xorigin
	}
	if i := strings.LastIndex(r.RemoteAddr, ":"); i > 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}

// RecoverFromPanic turns a handler panic into a 500.
func RecoverFromPanic(next box.H) box.H {
	return func(ctx context.Context) {
		defer func() {
			if err := recover(); err != nil {
				debug.PrintStack()
				box.SetError(ctx, fmt.Errorf("panic: %v", err))
				writeError(box.GetResponse(ctx), http.StatusInternalServerError, fmt.Sprint(err), "Unexpected error")
			}
		}()
		next(ctx)
	}
}

// PrettyErrorInterceptor renders routing and handler errors as JSON.
func PrettyErrorInterceptor(next box.H) box.H {
	return func(ctx context.Context) {
		next(ctx)

		err := box.GetError(ctx)
		if err == nil {
			return
		}
		w := box.GetResponse(ctx)

		switch err {
		case box.ErrResourceNotFound:
			writeError(w, http.StatusNotFound, err.Error(),
				fmt.Sprintf("resource '%s' not found", box.GetRequest(ctx).URL.String()))
		case box.ErrMethodNotAllowed:
			writeError(w, http.StatusMethodNotAllowed, err.Error(),
				fmt.Sprintf("method '%s' not allowed", box.GetRequest(ctx).Method))
		default:
			writeError(w, http.StatusInternalServerError, err.Error(), "Unexpected error")
		}
	}
}

func writeError(w http.ResponseWriter, status int, message, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message":     message,
			"description": description,
		},
	})
}

// Compression encodes responses with zstd or gzip, whichever the client
// accepts first in that order of preference.
func Compression(next box.H) box.H {
	return func(ctx context.Context) {
		r := box.GetRequest(ctx)
		w := box.GetResponse(ctx)

		accept := r.Header.Get("Accept-Encoding")
		var enc io.WriteCloser
		switch {
		case strings.Contains(accept, "zstd"):
			zw, err := zstd.NewWriter(w)
			if err != nil {
				next(ctx)
				return
			}
			w.Header().Set("Content-Encoding", "zstd")
			enc = zw
		case strings.Contains(accept, "gzip"):
			w.Header().Set("Content-Encoding", "gzip")
			enc = gzip.NewWriter(w)
		default:
			next(ctx)
			return
		}
		w.Header().Add("Vary", "Accept-Encoding")
		defer enc.Close()

		box.GetBoxContext(ctx).Response = encodedResponseWriter{Writer: enc, ResponseWriter: w}
		next(ctx)
	}
}

type encodedResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w encodedResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}
