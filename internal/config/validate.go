package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) fail(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) warn(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result)
	c.Query.validate(result)
	c.Observability.validate(result)
	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if d.ConnectionString == "" && (d.Port < 1 || d.Port > 65535) {
		result.fail("database.port", fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port), "")
	}

	if _, err := d.EffectiveDatabaseName(); err != nil {
		field := "database.database"
		hint := "set database.database or include a /database in database.dsn/database.dsn_file"
		if strings.HasPrefix(err.Error(), "database.dsn is invalid") {
			field = "database.dsn"
			hint = "use a postgres:// URL or a keyword/value connection string"
		}
		result.fail(field, err.Error(), hint)
	}

	if strings.ContainsAny(d.Schema, "\"\x00") {
		result.fail("database.schema", fmt.Sprintf("invalid schema name %q", d.Schema), "")
	}

	d.TLS.validate(result)

	if d.Pool.MaxOpen < 0 {
		result.fail("database.pool.max_open", "max_open cannot be negative", "")
	}
	if d.Pool.MinIdle < 0 {
		result.fail("database.pool.min_idle", "min_idle cannot be negative", "")
	}
	if d.Pool.MinIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.warn("database.pool.min_idle", "min_idle is greater than max_open", "idle connections will be limited to max_open")
	}
	if d.Pool.MaxLifetime < 0 {
		result.fail("database.pool.max_lifetime", "max_lifetime cannot be negative", "")
	}
	if d.Pool.IdleTimeout < 0 {
		result.fail("database.pool.idle_timeout", "idle_timeout cannot be negative", "")
	}
	if d.Pool.AcquireTimeout < 0 {
		result.fail("database.pool.acquire_timeout", "acquire_timeout cannot be negative", "set 0 to wait until the query deadline")
	}

	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval > d.ConnectionTimeout {
		result.warn("database.connection_retry_interval", "connection_retry_interval is greater than connection_timeout", "only one connection attempt will be made")
	}
	if d.ConnectionRetryInterval < 0 {
		result.fail("database.connection_retry_interval", "connection_retry_interval cannot be negative", "")
	}
	if d.ConnectionTimeout > 0 && d.ConnectionRetryInterval == 0 {
		result.fail(
			"database.connection_retry_interval",
			"connection_retry_interval must be greater than 0 when connection_timeout is set",
			"set a retry interval such as 2s, or set connection_timeout to 0 to disable retries",
		)
	}
	if d.ConnectionTimeout < 0 {
		result.fail("database.connection_timeout", "connection_timeout cannot be negative", "")
	}
}

var validSSLModes = map[string]bool{
	"":            true,
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

func (t *DatabaseTLSConfig) validate(result *ValidationResult) {
	if !validSSLModes[t.Mode] {
		result.fail("database.tls.mode", fmt.Sprintf("invalid TLS mode %q", t.Mode),
			"valid values are: disable, allow, prefer, require, verify-ca, verify-full")
	}

	if t.Mode == "verify-ca" && t.resolveCAFile() == "" {
		result.fail("database.tls.ca_file", "CA file is required for verify-ca mode",
			"set ca_file or ca_file_env to specify the CA certificate")
	}

	certFile := t.resolveCertFile()
	keyFile := t.resolveKeyFile()
	if (certFile != "") != (keyFile != "") {
		result.fail("database.tls.cert_file",
			"both cert_file and key_file must be specified for client certificate authentication",
			"provide both cert_file and key_file, or neither")
	}

	switch t.Mode {
	case "allow", "prefer", "require":
		result.warn("database.tls.mode", fmt.Sprintf("%s mode does not verify server certificates", t.Mode),
			"use verify-ca or verify-full in production")
	case "disable":
		if certFile != "" || t.resolveCAFile() != "" {
			result.warn("database.tls.mode", "TLS files are set but TLS is disabled", "")
		}
	}
}

func (q *QueryConfig) validate(result *ValidationResult) {
	if q.Timeout < 0 {
		result.fail("query.timeout", "timeout cannot be negative", "set 0 to disable the deadline")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.fail("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.fail("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.fail("observability.trace_sample_ratio",
			fmt.Sprintf("trace_sample_ratio %v is outside [0, 1]", o.TraceSampleRatio), "")
	}

	if o.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(o.MetricsAddr); err != nil {
			result.fail("observability.metrics_addr", fmt.Sprintf("invalid listen address %q", o.MetricsAddr),
				"use host:port, e.g. :9090")
		}
		if !o.MetricsEnabled {
			result.warn("observability.metrics_addr", "metrics_addr is set but metrics are disabled",
				"enable observability.metrics_enabled to serve /metrics")
		}
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.fail(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.fail(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			"use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.fail(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}

	if (o.TLSClientCertFile != "") != (o.TLSClientKeyFile != "") {
		result.fail(prefix+".tls_client_cert_file", "client certificate and key must be set together", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
