package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"EVIDENCA_DB", "EVIDENCA_ADDR", "EVIDENCA_BACKEND", "EVIDENCA_MAIL"} {
		t.Setenv(k, "")
	}
	c, err := Parse(nil, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if c.DBPath != "evidenca.sqlite3" || c.Addr != ":8080" || c.Backend != BackendSQLite || c.Mail != MailLog {
		t.Errorf("unexpected defaults %+v", c)
	}
}

func TestShortAndLongFlags(t *testing.T) {
	c, err := Parse([]string{"-d", "x.db", "-addr", ":9000", "-b", "mock"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if c.DBPath != "x.db" || c.Addr != ":9000" || c.Backend != BackendMock {
		t.Errorf("unexpected config %+v", c)
	}
}

func TestEnvironmentDefaults(t *testing.T) {
	t.Setenv("EVIDENCA_ADDR", ":7000")
	t.Setenv("EVIDENCA_BASE_URL", "https://admin.example.com/")

	c, err := Parse(nil, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if c.Addr != ":7000" {
		t.Errorf("expected env addr, got %s", c.Addr)
	}
	if c.BaseURL != "https://admin.example.com" || !c.Secure() {
		t.Errorf("unexpected base url %q", c.BaseURL)
	}

	// Flags win over the environment.
	c, _ = Parse([]string{"-a", ":6000"}, io.Discard)
	if c.Addr != ":6000" {
		t.Errorf("expected flag addr, got %s", c.Addr)
	}
}

func TestDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("EVIDENCA_TEST_ONLY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("EVIDENCA_TEST_ONLY") })

	if err := LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("EVIDENCA_TEST_ONLY"); got != "from-file" {
		t.Errorf("expected value from .env, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		args []string
		ok   bool
	}{
		{[]string{"-b", "postgres"}, false},
		{[]string{"-m", "smtp"}, false},
		{[]string{"-m", "ses"}, false},
		{[]string{"-m", "ses", "-mail-from", "noreply@example.com"}, true},
		{[]string{"-api-url", "localhost:8080"}, false},
		{[]string{"-api-url", "http://localhost:8080"}, true},
		{[]string{"extra"}, false},
	}
	for _, tt := range tests {
		t.Setenv("SES_FROM_EMAIL", "")
		_, err := Parse(tt.args, io.Discard)
		if (err == nil) != tt.ok {
			t.Errorf("Parse(%v) error = %v, want ok=%v", tt.args, err, tt.ok)
		}
	}
}

func TestHelp(t *testing.T) {
	if _, err := Parse([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("expected ErrHelp, got %v", err)
	}
}
