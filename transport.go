package miktos

import (
	"net/http"
	"net/http/httputil"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// headerTransport sets the client's current header set on every request.
type headerTransport struct {
	base   http.RoundTripper
	header func() http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not modify the caller's request.
	cloned := req.Clone(req.Context())
	for k, v := range t.header() {
		cloned.Header[k] = v
	}
	return t.base.RoundTrip(cloned)
}

// NewResponseHeaderTransport returns a clone of http.DefaultTransport that
// fails a request when its response headers take longer than d to arrive.
// Reading the body is not bounded.
func NewResponseHeaderTransport(d time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.ResponseHeaderTimeout = d
	return t
}

// debugTransport logs request and response dumps at debug level.
//
// Enable it with WithDebugLogging, or by setting MIKTOS_DEBUG=true or
// DEBUG=true in the environment. Dumps contain the bearer token.
type debugTransport struct{ base http.RoundTripper }

func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if reqDump, err := httputil.DumpRequestOut(req, true); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Str("request_dump", string(reqDump)).Msg("HTTP request")
	}

	resp, err := dt.base.RoundTrip(req)
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Str("url", req.URL.String()).Msg("HTTP request failed")
		return nil, err
	}

	// Streaming bodies are not dumped, reading them here would
	// hold back every chunk until the stream ends.
	dumpBody := resp.ContentLength >= 0 && resp.ContentLength <= maxErrorBody
	if respDump, err := httputil.DumpResponse(resp, dumpBody); err == nil {
		log.Debug().Str("method", req.Method).Str("url", req.URL.String()).Int("status_code", resp.StatusCode).Str("response_dump", string(respDump)).Msg("HTTP response")
	}
	return resp, nil
}

// debugLoggingRequested reports whether MIKTOS_DEBUG, or DEBUG when
// MIKTOS_DEBUG is unset, parses as true. This is the same lookup the CLI
// configuration does.
func debugLoggingRequested() bool {
	v, ok := os.LookupEnv("MIKTOS_DEBUG")
	if !ok {
		v = os.Getenv("DEBUG")
	}
	enabled, _ := strconv.ParseBool(v)
	return enabled
}

func newTracingTransport(base http.RoundTripper, tp trace.TracerProvider) http.RoundTripper {
	return otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "miktos " + r.Method + " " + r.URL.Path
		}),
	)
}
