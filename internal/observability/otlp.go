package observability

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// OTLPExporterConfig holds OTLP exporter options shared by traces and logs.
type OTLPExporterConfig struct {
	Endpoint          string
	Protocol          string
	Insecure          bool
	TLSCertFile       string
	TLSClientCertFile string
	TLSClientKeyFile  string
	Headers           map[string]string
	Timeout           time.Duration
	Compression       string
	RetryEnabled      bool
}

type otlpProtocol string

const (
	otlpProtocolGRPC otlpProtocol = "grpc"
	otlpProtocolHTTP otlpProtocol = "http/protobuf"
)

func parseOTLPProtocol(value string) (otlpProtocol, error) {
	switch p := strings.ToLower(strings.TrimSpace(value)); p {
	case "", "grpc":
		return otlpProtocolGRPC, nil
	case "http", "http/protobuf":
		return otlpProtocolHTTP, nil
	default:
		return "", fmt.Errorf("OTLP protocol %q is not grpc or http/protobuf", value)
	}
}

func buildTLSConfig(cfg OTLPExporterConfig) (*tls.Config, error) {
	out := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.TLSCertFile != "" {
		pem, err := os.ReadFile(cfg.TLSCertFile)
		if err != nil {
			return nil, fmt.Errorf("read OTLP CA bundle: %w", err)
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("OTLP CA bundle %s holds no PEM certificates", cfg.TLSCertFile)
		}
		out.RootCAs = roots
	}

	switch {
	case cfg.TLSClientCertFile == "" && cfg.TLSClientKeyFile == "":
	case cfg.TLSClientCertFile == "" || cfg.TLSClientKeyFile == "":
		return nil, errors.New("OTLP client certificate and key must be set together")
	default:
		pair, err := tls.LoadX509KeyPair(cfg.TLSClientCertFile, cfg.TLSClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load OTLP client certificate: %w", err)
		}
		out.Certificates = []tls.Certificate{pair}
	}
	return out, nil
}

// exporterSettings is an OTLPExporterConfig with the protocol parsed and the
// TLS material loaded, shared by the span and log exporters.
type exporterSettings struct {
	protocol otlpProtocol
	endpoint string
	tls      *tls.Config // nil means plaintext
	headers  map[string]string
	timeout  time.Duration
	gzip     bool
	retry    bool
}

const (
	exportRetryInitial     = time.Second
	exportRetryMaxInterval = 5 * time.Second
	exportRetryMaxElapsed  = 30 * time.Second
)

func resolveExporter(cfg OTLPExporterConfig) (exporterSettings, error) {
	protocol, err := parseOTLPProtocol(cfg.Protocol)
	if err != nil {
		return exporterSettings{}, err
	}
	s := exporterSettings{
		protocol: protocol,
		endpoint: cfg.Endpoint,
		headers:  cfg.Headers,
		timeout:  cfg.Timeout,
		gzip:     cfg.Compression == "gzip",
		retry:    cfg.RetryEnabled,
	}
	if !cfg.Insecure {
		if s.tls, err = buildTLSConfig(cfg); err != nil {
			return exporterSettings{}, err
		}
	}
	return s, nil
}

// endpointIsURL reports whether the HTTP exporters should treat the endpoint
// as a full URL rather than host:port.
func (s exporterSettings) endpointIsURL() bool {
	return strings.HasPrefix(s.endpoint, "http://") || strings.HasPrefix(s.endpoint, "https://")
}

func (s exporterSettings) spanExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	if s.protocol == otlpProtocolHTTP {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.endpoint)}
		if s.endpointIsURL() {
			opts = []otlptracehttp.Option{otlptracehttp.WithEndpointURL(s.endpoint)}
		}
		if s.tls == nil {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(s.tls))
		}
		if len(s.headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(s.headers))
		}
		if s.timeout > 0 {
			opts = append(opts, otlptracehttp.WithTimeout(s.timeout))
		}
		if s.gzip {
			opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
		}
		if s.retry {
			opts = append(opts, otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
				Enabled: true, InitialInterval: exportRetryInitial,
				MaxInterval: exportRetryMaxInterval, MaxElapsedTime: exportRetryMaxElapsed,
			}))
		}
		return otlptracehttp.New(ctx, opts...)
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(s.endpoint)}
	if s.tls == nil {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(s.tls)))
	}
	if len(s.headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(s.headers))
	}
	if s.timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(s.timeout))
	}
	if s.gzip {
		opts = append(opts, otlptracegrpc.WithCompressor("gzip"))
	}
	if s.retry {
		opts = append(opts, otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled: true, InitialInterval: exportRetryInitial,
			MaxInterval: exportRetryMaxInterval, MaxElapsedTime: exportRetryMaxElapsed,
		}))
	}
	return otlptracegrpc.New(ctx, opts...)
}

func (s exporterSettings) logExporter(ctx context.Context) (log.Exporter, error) {
	if s.protocol == otlpProtocolHTTP {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(s.endpoint)}
		if s.endpointIsURL() {
			opts = []otlploghttp.Option{otlploghttp.WithEndpointURL(s.endpoint)}
		}
		if s.tls == nil {
			opts = append(opts, otlploghttp.WithInsecure())
		} else {
			opts = append(opts, otlploghttp.WithTLSClientConfig(s.tls))
		}
		if len(s.headers) > 0 {
			opts = append(opts, otlploghttp.WithHeaders(s.headers))
		}
		if s.timeout > 0 {
			opts = append(opts, otlploghttp.WithTimeout(s.timeout))
		}
		if s.gzip {
			opts = append(opts, otlploghttp.WithCompression(otlploghttp.GzipCompression))
		}
		if s.retry {
			opts = append(opts, otlploghttp.WithRetry(otlploghttp.RetryConfig{
				Enabled: true, InitialInterval: exportRetryInitial,
				MaxInterval: exportRetryMaxInterval, MaxElapsedTime: exportRetryMaxElapsed,
			}))
		}
		return otlploghttp.New(ctx, opts...)
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(s.endpoint)}
	if s.tls == nil {
		opts = append(opts, otlploggrpc.WithInsecure())
	} else {
		opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(s.tls)))
	}
	if len(s.headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(s.headers))
	}
	if s.timeout > 0 {
		opts = append(opts, otlploggrpc.WithTimeout(s.timeout))
	}
	if s.gzip {
		opts = append(opts, otlploggrpc.WithCompressor("gzip"))
	}
	if s.retry {
		opts = append(opts, otlploggrpc.WithRetry(otlploggrpc.RetryConfig{
			Enabled: true, InitialInterval: exportRetryInitial,
			MaxInterval: exportRetryMaxInterval, MaxElapsedTime: exportRetryMaxElapsed,
		}))
	}
	return otlploggrpc.New(ctx, opts...)
}

// TracerProvider owns the SDK tracer provider behind graphquery spans.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// InitTracerProvider installs a global tracer provider exporting over OTLP.
func InitTracerProvider(ctx context.Context, cfg Config) (*TracerProvider, error) {
	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}
	settings, err := resolveExporter(cfg.OTLP)
	if err != nil {
		return nil, err
	}
	exporter, err := settings.spanExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("OTLP span exporter (%s): %w", settings.protocol, err)
	}

	tp := &TracerProvider{provider: sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(traceSamplerForRatio(cfg.TraceSampleRatio)),
	)}
	otel.SetTracerProvider(tp.provider)
	return tp, nil
}

// traceSamplerForRatio maps trace_sample_ratio onto a sampler. Fractional
// ratios respect the parent decision.
func traceSamplerForRatio(ratio float64) sdktrace.Sampler {
	if ratio <= 0 {
		return sdktrace.NeverSample()
	}
	if ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "tracer provider", tp.provider.Shutdown)
}

// LoggerProvider owns the SDK logger provider that receives slog records.
type LoggerProvider struct {
	provider *log.LoggerProvider
}

// InitLoggerProvider builds a logger provider exporting over OTLP. It is not
// installed globally; callers hand it to logging.Config.
func InitLoggerProvider(ctx context.Context, cfg Config) (*LoggerProvider, error) {
	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}
	settings, err := resolveExporter(cfg.OTLP)
	if err != nil {
		return nil, err
	}
	exporter, err := settings.logExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("OTLP log exporter (%s): %w", settings.protocol, err)
	}

	return &LoggerProvider{provider: log.NewLoggerProvider(
		log.WithResource(res),
		log.WithProcessor(log.NewBatchProcessor(exporter)),
	)}, nil
}

// Shutdown flushes pending log records.
func (lp *LoggerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "logger provider", lp.provider.Shutdown)
}

// Provider returns the underlying SDK provider.
func (lp *LoggerProvider) Provider() *log.LoggerProvider {
	return lp.provider
}
