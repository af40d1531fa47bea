package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	checks := []struct {
		name      string
		got, want any
	}{
		{"database path", c.Database.Path, "./plexio.db"},
		{"callback port", c.Server.Port, 3000},
		{"movies section", c.Plex.MoviesSection, "Movies"},
		{"missing dir", c.Import.MissingDir, "."},
		{"export workers", c.Export.Workers, 4},
		{"token", c.Plex.Token, ""},
	}
	for _, tc := range checks {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfig(t, `
[database]
path = "/srv/plexio/history.db"

[plex]
server_url = "http://192.168.1.10:32400"
token = "abc123"
timeout_seconds = 5
`)
		c, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if c.Database.Path != "/srv/plexio/history.db" || c.Plex.Token != "abc123" {
			t.Errorf("file values not applied: %+v %+v", c.Database, c.Plex)
		}
		if c.Plex.Timeout() != 5*time.Second {
			t.Errorf("Timeout() = %v", c.Plex.Timeout())
		}
		if c.Plex.MoviesSection != "Movies" || c.Server.Port != 3000 {
			t.Errorf("unset keys should keep defaults, got %q / %d", c.Plex.MoviesSection, c.Server.Port)
		}
	})

	errorCases := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.toml") }, ErrMissingConfig},
		{"broken toml", func(t *testing.T) string { return writeConfig(t, "[plex\n") }, ErrInvalidConfig},
		{"wrong type", func(t *testing.T) string { return writeConfig(t, "[server]\nport = \"eighty\"\n") }, ErrInvalidConfig},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(tc.path(t)); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestConfigFiles(t *testing.T) {
	t.Run("CreateConfigFile writes the template once", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("CreateConfigFile() error = %v", err)
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), "[plex]") {
			t.Errorf("template missing [plex] section:\n%s", data)
		}
		if err := CreateConfigFile(path); err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected already exists error, got %v", err)
		}
	})

	t.Run("SaveConfig keeps login results", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		c := DefaultConfig()
		c.Plex.Token = "saved-token"
		c.Plex.ServerURL = "https://10-0-0-2.abc.plex.direct:32400"
		c.Plex.ServerName = "Living Room"

		if err := SaveConfig(path, c); err != nil {
			t.Fatalf("SaveConfig() error = %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("token file should be private, mode %v", info.Mode().Perm())
		}

		loaded, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if loaded.Plex != c.Plex {
			t.Errorf("plex section changed: %+v", loaded.Plex)
		}
	})
}

func TestConfigHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"zero timeout", PlexConfig{}.Timeout(), 30 * time.Second},
		{"negative timeout", PlexConfig{TimeoutSeconds: -1}.Timeout(), 30 * time.Second},
		{"explicit timeout", PlexConfig{TimeoutSeconds: 12}.Timeout(), 12 * time.Second},
		{"addr", ServerConfig{Host: "127.0.0.1", Port: 3000}.Addr(), "127.0.0.1:3000"},
		{"any port", ServerConfig{Host: "localhost"}.Addr(), "localhost:0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}
