package miktos

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shoenig/test/must"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type closeCounter struct {
	io.Reader
	closed int
}

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestTextStream_splitRunes(t *testing.T) {
	const text = "héllo, 世界"

	body := &closeCounter{Reader: iotest.OneByteReader(strings.NewReader(text))}
	stream := newTextStream(body)

	var (
		chunks []string
		joined strings.Builder
	)
	for chunk, err := range stream.Chunks() {
		must.NoError(t, err)
		chunks = append(chunks, chunk)
		joined.WriteString(chunk)
	}

	// One chunk per read, even in the middle of a multi-byte rune.
	must.SliceLen(t, len(text), chunks)
	must.Eq(t, text, joined.String())
	must.Eq(t, 1, body.closed)

	must.NoError(t, stream.Close())
	must.Eq(t, 1, body.closed)
}

func TestTextStream_readError(t *testing.T) {
	boom := errors.New("connection reset")

	body := &closeCounter{Reader: io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(boom))}
	stream := newTextStream(body)

	var (
		chunks []string
		errs   []error
	)
	for chunk, err := range stream.Chunks() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chunks = append(chunks, chunk)
	}

	must.Eq(t, []string{"partial"}, chunks)
	must.SliceLen(t, 1, errs)
	must.ErrorIs(t, errs[0], boom)
	must.Eq(t, 1, body.closed)
}

func TestTextStream_dataWithEOF(t *testing.T) {
	body := &closeCounter{Reader: iotest.DataErrReader(strings.NewReader("all at once"))}

	text, err := newTextStream(body).Text()
	must.NoError(t, err)
	must.Eq(t, "all at once", text)
}

func TestMetrics_requestsTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/projects" && r.Method == http.MethodPost {
			w.WriteHeader(http.StatusConflict)
			return
		}
		io.WriteString(w, "a")
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))

	conflicts := requestsTotal.WithLabelValues(opCreateProject, "409")
	streamed := requestsTotal.WithLabelValues(opGenerateTextStream, "200")

	beforeConflicts := testutil.ToFloat64(conflicts)
	beforeStreamed := testutil.ToFloat64(streamed)
	beforeChunks := testutil.ToFloat64(streamChunksTotal)

	_, err := c.CreateProject(t.Context(), &CreateProjectRequest{Name: "dup"})
	must.Error(t, err)

	err = c.StreamText(t.Context(), &GenerateTextRequest{ProjectID: "p1", Model: ModelGPT4o}, func(string) error { return nil })
	must.NoError(t, err)

	must.Eq(t, beforeConflicts+1, testutil.ToFloat64(conflicts))
	must.Eq(t, beforeStreamed+1, testutil.ToFloat64(streamed))
	must.Eq(t, beforeChunks+1, testutil.ToFloat64(streamChunksTotal))
}

func TestDebugLogging(t *testing.T) {
	var buf bytes.Buffer

	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient("debug-key", WithBaseURL(srv.URL), WithDebugLogging(true))

	_, err := c.ListProjects(t.Context(), nil)
	must.NoError(t, err)

	out := buf.String()
	must.StrContains(t, out, `"message":"HTTP request"`)
	must.StrContains(t, out, `"message":"HTTP response"`)
	must.StrContains(t, out, "Bearer debug-key")
	must.StrContains(t, out, `"status_code":200`)
}

func TestTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("Traceparent")
		io.WriteString(w, `{"content":"ok"}`)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithTracing(tp))

	_, err := c.GenerateText(t.Context(), &GenerateTextRequest{ProjectID: "p1", Model: ModelGPT4o})
	must.NoError(t, err)

	spans := exporter.GetSpans()
	must.SliceLen(t, 1, spans)
	must.Eq(t, "miktos POST /generate", spans[0].Name)

	// No global propagator is installed, so nothing is injected.
	must.Eq(t, "", traceparent)
}

func TestWithHTTPClient_doesNotMutate(t *testing.T) {
	hc := &http.Client{}
	_ = NewClient("k", WithHTTPClient(hc))
	must.Nil(t, hc.Transport)
}

func TestNewClient_noOverallTimeout(t *testing.T) {
	c := NewClient("k")
	must.Eq(t, time.Duration(0), c.httpClient.Timeout)
}

func TestDebugLoggingRequested(t *testing.T) {
	unset := func() {
		for _, k := range []string{"MIKTOS_DEBUG", "DEBUG"} {
			t.Setenv(k, "")
			must.NoError(t, os.Unsetenv(k))
		}
	}

	unset()
	must.False(t, debugLoggingRequested())

	t.Setenv("DEBUG", "true")
	must.True(t, debugLoggingRequested())

	t.Setenv("DEBUG", "1")
	must.True(t, debugLoggingRequested())

	t.Setenv("MIKTOS_DEBUG", "false")
	must.False(t, debugLoggingRequested())

	unset()
	t.Setenv("MIKTOS_DEBUG", "true")
	must.True(t, debugLoggingRequested())
}
