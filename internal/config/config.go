package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"sigs.k8s.io/yaml"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port                int    `envconfig:"PORT" default:"8080"`
	LogLevel            string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL         string `envconfig:"DATABASE_URL" required:"true"`
	SessionCookieName   string `envconfig:"SESSION_COOKIE_NAME" default:"classpod_session"`
	SessionSecret       string `envconfig:"SESSION_SECRET" required:"true"`
	SessionValidityDays int    `envconfig:"SESSION_VALIDITY_DAYS" default:"14"`
	AppTitle            string `envconfig:"APP_TITLE" default:"ClassPod"`
	VLEURL              string `envconfig:"VLE_URL" default:""`
	BaseURL             string `envconfig:"BASE_URL" required:"true"`
	PlatformConfig      string `envconfig:"PLATFORM_CONFIG" required:"true"`
	FrontendDir         string `envconfig:"FRONTEND_DIR" default:""`
	KubeconfigPath      string `envconfig:"KUBECONFIG_PATH" default:""`
	Namespace           string `envconfig:"NAMESPACE" default:"default"`
	Version             string `envconfig:"VERSION" default:"dev"`
}

// Platform is a single trusted LTI platform entry.
type Platform struct {
	Issuer        string   `json:"issuer"`
	ClientID      string   `json:"clientId"`
	AuthLoginURL  string   `json:"authLoginUrl"`
	AuthTokenURL  string   `json:"authTokenUrl"`
	KeySetURL     string   `json:"keySetUrl"`
	DeploymentIDs []string `json:"deploymentIds"`
}

// ContainerRule maps a container name to the groups allowed to see it.
type ContainerRule struct {
	Name   string   `json:"name"`
	Groups []string `json:"groups"`
}

// File is the YAML file holding platform trust entries and container rules.
type File struct {
	Platforms  []Platform      `json:"platforms"`
	Containers []ContainerRule `json:"containers"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads and validates the platform/container YAML file at path.
func LoadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading platform config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing platform config: %w", err)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

// Validate checks that all launch-critical fields are present. They are
// never defaulted: a platform entry that cannot complete a handshake is a
// configuration error at startup, not at launch time.
func (f *File) Validate() error {
	if len(f.Platforms) == 0 {
		return errors.New("platform config: at least one platform entry is required")
	}

	seen := make(map[string]bool, len(f.Platforms))
	for i, p := range f.Platforms {
		switch {
		case p.Issuer == "":
			return fmt.Errorf("platform config: entry %d: issuer is required", i)
		case p.ClientID == "":
			return fmt.Errorf("platform config: entry %q: clientId is required", p.Issuer)
		case p.AuthLoginURL == "":
			return fmt.Errorf("platform config: entry %q: authLoginUrl is required", p.Issuer)
		case p.KeySetURL == "":
			return fmt.Errorf("platform config: entry %q: keySetUrl is required", p.Issuer)
		}
		if seen[p.Issuer] {
			return fmt.Errorf("platform config: duplicate issuer %q", p.Issuer)
		}
		seen[p.Issuer] = true
	}

	for i, c := range f.Containers {
		if c.Name == "" {
			return fmt.Errorf("platform config: container %d: name is required", i)
		}
	}

	return nil
}

// PlatformByIssuer resolves a trust entry by its issuer. The boolean is
// false when the issuer is not configured.
func (f *File) PlatformByIssuer(issuer string) (Platform, bool) {
	for _, p := range f.Platforms {
		if p.Issuer == issuer {
			return p, true
		}
	}
	return Platform{}, false
}
