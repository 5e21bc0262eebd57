package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/snapetech/smotreshka-ripper/internal/safeurl"
	"github.com/snapetech/smotreshka-ripper/internal/smotreshka"
)

// EnvPrefix prefixes every environment variable, e.g. SMOTRESHKA_USERNAME.
const EnvPrefix = "SMOTRESHKA"

const (
	DefaultPlaylistOutput = "smotreshka.m3u"
	DefaultXMLTVOutput    = "smotreshka.xmltv.xml"
	DefaultServeAddr      = ":8080"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Mode selects which phases run and which artifacts are written.
type Mode string

const (
	ModeAll Mode = "all"
	ModeEPG Mode = "epg"
	ModeM3U Mode = "m3u"
)

// ParseMode accepts all, epg or m3u (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAll, ModeEPG, ModeM3U:
		return m, nil
	}
	return "", fmt.Errorf("%w: mode %q (want all, epg or m3u)", ErrInvalid, s)
}

// WantEPG reports whether programs are collected and the XMLTV file written.
func (m Mode) WantEPG() bool { return m == ModeAll || m == ModeEPG }

// WantPlaylist reports whether streams are collected and the playlist written.
func (m Mode) WantPlaylist() bool { return m == ModeAll || m == ModeM3U }

// Config holds one run's settings. Values are layered: Default, then the
// optional TOML file, then SMOTRESHKA_* environment, then the credentials file
// for whatever is still empty, then command-line flags.
type Config struct {
	Username        string `toml:"username"`
	Password        string `toml:"password"`
	CredentialsFile string `toml:"credentials_file" split_words:"true"` // "Username:" / "Password:" lines

	BaseURL     string  `toml:"base_url" split_words:"true"`
	UserAgent   string  `toml:"user_agent" split_words:"true"`
	RequestRate float64 `toml:"request_rate" split_words:"true"` // requests per second; 0 = unpaced

	Mode           Mode   `toml:"mode"`
	Limit          int    `toml:"limit"` // 0 = all purchased channels
	PlaylistOutput string `toml:"playlist_output" split_words:"true"`
	XMLTVOutput    string `toml:"xmltv_output" split_words:"true"`
	Overwrite      bool   `toml:"overwrite"`

	SnapshotPath string `toml:"snapshot_path" split_words:"true"` // SQLite archive; "" = disabled
	MetricsFile  string `toml:"metrics_file" split_words:"true"`  // Prometheus textfile; "" = disabled
	ServeAddr    string `toml:"serve_addr" split_words:"true"`

	LogFormat string `toml:"log_format" split_words:"true"`
	Verbosity int    `toml:"verbosity"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		BaseURL:        smotreshka.DefaultBaseURL,
		UserAgent:      smotreshka.DefaultUserAgent,
		Mode:           ModeAll,
		PlaylistOutput: DefaultPlaylistOutput,
		XMLTVOutput:    DefaultXMLTVOutput,
		ServeAddr:      DefaultServeAddr,
		LogFormat:      "console",
	}
}

// Load builds the config from defaults, the TOML file at path (skipped when
// path is empty) and the environment. Call LoadEnvFile(".env") first to use a
// .env file. Load does not validate or read CredentialsFile; the caller
// applies flags, then FillCredentials, then Validate.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(c); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	return nil
}

// FillCredentials reads CredentialsFile when Username or Password is still
// empty. Values already set win.
func (c *Config) FillCredentials() error {
	if c.CredentialsFile == "" || (c.Username != "" && c.Password != "") {
		return nil
	}
	user, pass, err := readCredentialsFile(c.CredentialsFile)
	if err != nil {
		return err
	}
	if c.Username == "" {
		c.Username = user
	}
	if c.Password == "" {
		c.Password = pass
	}
	return nil
}

// readCredentialsFile reads "Username: x" and "Password: x" from path.
func readCredentialsFile(path string) (user, pass string, err error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", "", fmt.Errorf("credentials file: %w", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "Username:") {
			user = strings.TrimSpace(strings.TrimPrefix(line, "Username:"))
		} else if strings.HasPrefix(line, "Password:") {
			pass = strings.TrimSpace(strings.TrimPrefix(line, "Password:"))
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", fmt.Errorf("credentials file: %w", err)
	}
	if user == "" || pass == "" {
		return "", "", fmt.Errorf("%w: credentials file %s: missing Username or Password", ErrInvalid, path)
	}
	return user, pass, nil
}

// Validate checks the settings needed for a rip. Every problem is reported;
// each wraps ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	if _, err := ParseMode(string(c.Mode)); err != nil {
		errs = append(errs, err)
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("%w: limit must not be negative, got %d", ErrInvalid, c.Limit))
	}
	if c.RequestRate < 0 {
		errs = append(errs, fmt.Errorf("%w: request rate must not be negative", ErrInvalid))
	}
	if err := c.ValidateLogin(); err != nil {
		errs = append(errs, err)
	}
	if c.Mode.WantPlaylist() && strings.TrimSpace(c.PlaylistOutput) == "" {
		errs = append(errs, fmt.Errorf("%w: playlist output path is empty", ErrInvalid))
	}
	if c.Mode.WantEPG() && strings.TrimSpace(c.XMLTVOutput) == "" {
		errs = append(errs, fmt.Errorf("%w: xmltv output path is empty", ErrInvalid))
	}
	return errors.Join(errs...)
}

// ValidateLogin checks only what a login needs: credentials and base URL.
func (c *Config) ValidateLogin() error {
	var missing []string
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s must be set (flag, %s_USERNAME/%s_PASSWORD or credentials file)",
			ErrInvalid, strings.Join(missing, " and "), EnvPrefix, EnvPrefix)
	}
	if err := safeurl.Check(c.BaseURL); err != nil {
		return fmt.Errorf("%w: base url: %w", ErrInvalid, err)
	}
	return nil
}

// Outputs returns the artifact paths the mode will write, listing first.
func (c *Config) Outputs() []string {
	var out []string
	if c.Mode.WantEPG() {
		out = append(out, c.XMLTVOutput)
	}
	if c.Mode.WantPlaylist() {
		out = append(out, c.PlaylistOutput)
	}
	return out
}
