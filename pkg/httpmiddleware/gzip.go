package httpmiddleware

import (
	"net/http"
	"strings"

	"github.com/klauspost/pgzip"
)

// gzip block settings; API responses are small, so keep buffers modest.
const (
	gzipBlockSize = 64 << 10
	gzipBlocks    = 2
)

type gzipResponseWriter struct {
	http.ResponseWriter
	level       int
	gz          *pgzip.Writer
	wroteHeader bool
}

func (g *gzipResponseWriter) WriteHeader(status int) {
	if g.wroteHeader {
		return
	}
	g.wroteHeader = true

	h := g.Header()
	if bodyAllowed(status) && h.Get("Content-Encoding") == "" {
		gz, err := pgzip.NewWriterLevel(g.ResponseWriter, g.level)
		if err == nil && gz.SetConcurrency(gzipBlockSize, gzipBlocks) == nil {
			g.gz = gz
			h.Del("Content-Length")
			h.Set("Content-Encoding", "gzip")
		}
	}
	g.ResponseWriter.WriteHeader(status)
}

func (g *gzipResponseWriter) Write(b []byte) (int, error) {
	if !g.wroteHeader {
		g.WriteHeader(http.StatusOK)
	}
	if g.gz == nil {
		return g.ResponseWriter.Write(b)
	}
	return g.gz.Write(b)
}

func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

func (g *gzipResponseWriter) close() error {
	if g.gz == nil {
		return nil
	}
	return g.gz.Close()
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200,
		status == http.StatusNoContent,
		status == http.StatusNotModified:
		return false
	}
	return true
}

// Gzip compresses responses for clients that accept gzip. Level is a
// pgzip compression level; out-of-range values fall back to the default.
func Gzip(level int) Middleware {
	if level < pgzip.ConstantCompression || level > pgzip.BestCompression {
		level = pgzip.DefaultCompression
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Accept-Encoding")
			if r.Method == http.MethodHead || !acceptsGzip(r) {
				next.ServeHTTP(w, r)
				return
			}
			gw := &gzipResponseWriter{ResponseWriter: w, level: level}
			defer func() { _ = gw.close() }()
			next.ServeHTTP(gw, r)
		})
	}
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			continue
		}
		// "gzip;q=0" explicitly refuses gzip.
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}
