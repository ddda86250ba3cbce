package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ApplicationName is reported to the server as application_name.
const ApplicationName = "pg-graphquery"

// DSN returns a PostgreSQL connection URL.
// If ConnectionString is set it is returned unchanged apart from the TLS
// parameters the connection string leaves unset. Otherwise the URL is built
// from the discrete fields.
func (d *DatabaseConfig) DSN() string {
	if dsn := strings.TrimSpace(d.ConnectionString); dsn != "" {
		return d.withTLSParams(dsn)
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Database,
	}
	switch {
	case d.User != "" && d.Password != "":
		u.User = url.UserPassword(d.User, d.Password)
	case d.User != "":
		u.User = url.User(d.User)
	}
	q := url.Values{}
	d.TLS.addParams(q)
	u.RawQuery = q.Encode()
	return u.String()
}

func (d *DatabaseConfig) withTLSParams(dsn string) string {
	if !strings.Contains(dsn, "://") {
		// keyword/value form
		extra := url.Values{}
		d.TLS.addParams(extra)
		for key := range extra {
			if strings.Contains(dsn, key+"=") {
				continue
			}
			dsn += fmt.Sprintf(" %s=%s", key, extra.Get(key))
		}
		return dsn
	}

	u, err := url.Parse(dsn)
	if err != nil {
		// Left for ConnConfig and Validate to report.
		return dsn
	}
	q := u.Query()
	extra := url.Values{}
	d.TLS.addParams(extra)
	for key := range extra {
		if q.Get(key) == "" {
			q.Set(key, extra.Get(key))
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// addParams writes the libpq TLS parameters of t into q.
func (t *DatabaseTLSConfig) addParams(q url.Values) {
	if t.Mode != "" {
		q.Set("sslmode", t.Mode)
	}
	if ca := t.resolveCAFile(); ca != "" {
		q.Set("sslrootcert", ca)
	}
	if cert := t.resolveCertFile(); cert != "" {
		q.Set("sslcert", cert)
	}
	if key := t.resolveKeyFile(); key != "" {
		q.Set("sslkey", key)
	}
}

// ConnConfig parses the effective DSN into a pgx connection config.
func (d *DatabaseConfig) ConnConfig() (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(d.DSN())
	if err != nil {
		return nil, fmt.Errorf("database.dsn is invalid: %w", err)
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	if _, ok := cfg.RuntimeParams["application_name"]; !ok {
		cfg.RuntimeParams["application_name"] = ApplicationName
	}
	return cfg, nil
}

// EffectiveDatabaseName returns the database the connection targets.
func (d *DatabaseConfig) EffectiveDatabaseName() (string, error) {
	configDatabase := strings.TrimSpace(d.Database)
	dsn := strings.TrimSpace(d.ConnectionString)
	if dsn == "" {
		if configDatabase == "" {
			return "", fmt.Errorf("no database configured: set database.database or include /<database> in database.dsn")
		}
		return configDatabase, nil
	}

	parsed, err := pgx.ParseConfig(dsn)
	if err != nil {
		return "", fmt.Errorf("database.dsn is invalid: %w", err)
	}
	if parsed.Database == "" {
		if configDatabase == "" {
			return "", fmt.Errorf("database.dsn does not name a database and database.database is not set")
		}
		return configDatabase, nil
	}
	return parsed.Database, nil
}

// resolveCAFile returns the effective CA file path, checking env var indirection.
func (t *DatabaseTLSConfig) resolveCAFile() string {
	if t.CAFileEnv != "" {
		if path := os.Getenv(t.CAFileEnv); path != "" {
			return path
		}
	}
	return t.CAFile
}

// resolveCertFile returns the effective client cert file path, checking env var indirection.
func (t *DatabaseTLSConfig) resolveCertFile() string {
	if t.CertFileEnv != "" {
		if path := os.Getenv(t.CertFileEnv); path != "" {
			return path
		}
	}
	return t.CertFile
}

// resolveKeyFile returns the effective client key file path, checking env var indirection.
func (t *DatabaseTLSConfig) resolveKeyFile() string {
	if t.KeyFileEnv != "" {
		if path := os.Getenv(t.KeyFileEnv); path != "" {
			return path
		}
	}
	return t.KeyFile
}
