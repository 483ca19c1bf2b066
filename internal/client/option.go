// Package client configures HTTP clients used to talk to remote document
// services.
package client

import (
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/henvic/httpretty"
	"go.uber.org/zap"
)

// Option decorates the transport of a client.
type Option func(http.RoundTripper) http.RoundTripper

func WithUserAgent(version string) Option {
	return setHeaderFn("User-Agent", func() (string, error) {
		return fmt.Sprintf("mdedit/%s (%s; %s)", version, runtime.GOOS, runtime.GOARCH), nil
	})
}

func WithContentType(value string) Option {
	return setHeaderFn("Content-Type", func() (string, error) {
		return value, nil
	})
}

func WithLogger(log *zap.Logger) Option {
	return func(rt http.RoundTripper) http.RoundTripper {
		return funcTripper(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			log.Debug(
				"send an API request",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)
			resp, err := rt.RoundTrip(r)
			if resp != nil {
				log.Debug(
					"received an API response",
					zap.String("path", r.URL.Path),
					zap.Int("status", resp.StatusCode),
					zap.Duration("latency", time.Since(start)),
				)
			}
			return resp, err
		})
	}
}

// WithHTTPDump writes every request and response to out.
func WithHTTPDump(out io.Writer, colors bool) Option {
	logger := &httpretty.Logger{
		Time:            true,
		TLS:             false,
		Colors:          colors,
		RequestHeader:   true,
		RequestBody:     true,
		ResponseHeader:  true,
		ResponseBody:    true,
		Formatters:      []httpretty.Formatter{&httpretty.JSONFormatter{}},
		MaxResponseBody: 50000,
	}
	logger.SetOutput(out)
	return logger.RoundTripper
}

func NewHTTPClient(client *http.Client, opts ...Option) *http.Client {
	if client == nil {
		client = &http.Client{
			Transport: http.DefaultTransport,
		}
	}
	if client.Transport == nil {
		client.Transport = http.DefaultTransport
	}
	for _, o := range opts {
		client.Transport = o(client.Transport)
	}
	return client
}

type funcTripper func(*http.Request) (*http.Response, error)

func (f funcTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func setHeaderFn(name string, valueGetter func() (string, error)) Option {
	return func(rt http.RoundTripper) http.RoundTripper {
		return funcTripper(func(r *http.Request) (*http.Response, error) {
			value, err := valueGetter()
			if err != nil {
				return nil, err
			}
			if r.Header.Get(name) == "" {
				// A RoundTripper must not modify the caller's request.
				r = r.Clone(r.Context())
				r.Header.Set(name, value)
			}
			return rt.RoundTrip(r)
		})
	}
}
