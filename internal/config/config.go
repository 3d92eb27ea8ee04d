// Package config reads the server configuration from flags, whose defaults
// come from the environment and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Backends.
const (
	BackendSQLite = "sqlite"
	BackendMock   = "mock"
)

// Mailers.
const (
	MailLog = "log"
	MailSES = "ses"
)

// Config is the server configuration.
type Config struct {
	DBPath   string
	Addr     string
	LogPath  string
	Admin    string
	Backend  string
	APIURL   string
	Mail     string
	MailFrom string
	Region   string
	BaseURL  string
}

// Usage is printed for -h.
const Usage = `Usage: evidenca [flags]

Flags:
  -d, -db <path>          SQLite database path (default: evidenca.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -admin <email>      admin email on first run (default: admin@example.com)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -b, -backend <name>     sqlite or mock (default: sqlite)
      -api-url <url>      serve only the UI against a remote API
  -m, -mail <name>        log or ses (default: log)
      -mail-from <addr>   sender address for SES
      -region <region>    AWS region for SES
      -base-url <url>     public URL used in email links
  -h, -help               show this help and exit

Every flag defaults to an environment variable (EVIDENCA_DB, EVIDENCA_ADDR,
EVIDENCA_ADMIN, EVIDENCA_LOG, EVIDENCA_BACKEND, EVIDENCA_API_URL,
EVIDENCA_MAIL, SES_FROM_EMAIL, SES_AWS_REGION, EVIDENCA_BASE_URL), which may
be set in a .env file.
`

// LoadEnv reads .env files into the environment. Missing files are not an
// error; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// Parse reads flags from args. It returns flag.ErrHelp for -h.
func Parse(args []string, output io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("evidenca", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { fmt.Fprint(output, Usage) }

	c := &Config{}
	str := func(p *string, long, short, key, fallback string) {
		def := env(key, fallback)
		fs.StringVar(p, long, def, "")
		if short != "" {
			fs.StringVar(p, short, def, "")
		}
	}
	str(&c.DBPath, "db", "d", "EVIDENCA_DB", "evidenca.sqlite3")
	str(&c.Addr, "addr", "a", "EVIDENCA_ADDR", ":8080")
	str(&c.Admin, "admin", "u", "EVIDENCA_ADMIN", "admin@example.com")
	str(&c.LogPath, "log", "l", "EVIDENCA_LOG", "")
	str(&c.Backend, "backend", "b", "EVIDENCA_BACKEND", BackendSQLite)
	str(&c.APIURL, "api-url", "", "EVIDENCA_API_URL", "")
	str(&c.Mail, "mail", "m", "EVIDENCA_MAIL", MailLog)
	str(&c.MailFrom, "mail-from", "", "SES_FROM_EMAIL", "")
	str(&c.Region, "region", "", "SES_AWS_REGION", "")
	str(&c.BaseURL, "base-url", "", "EVIDENCA_BASE_URL", "")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks option values and their combinations.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendMock:
	default:
		return fmt.Errorf("unknown backend %q (want sqlite or mock)", c.Backend)
	}
	switch c.Mail {
	case MailLog:
	case MailSES:
		if c.MailFrom == "" {
			return errors.New("ses mail needs a sender address (-mail-from or SES_FROM_EMAIL)")
		}
	default:
		return fmt.Errorf("unknown mailer %q (want log or ses)", c.Mail)
	}
	if c.APIURL != "" && !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api url %q must start with http:// or https://", c.APIURL)
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	return nil
}

// Secure reports whether the UI is served over HTTPS.
func (c *Config) Secure() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}
