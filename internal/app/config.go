package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/entraops/guestgate/internal/graph"
	"github.com/entraops/guestgate/internal/services"
)

// Config represents the runtime configuration for the guestgate backend.
// It is constructed once at startup and read-only afterwards.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Invite     InviteConfig     `mapstructure:"invite"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// InviteConfig tunes invitation defaults and caps.
type InviteConfig struct {
	DefaultRedirectURL string        `mapstructure:"default_redirect_url"`
	RowCap             int           `mapstructure:"row_cap"`
	NameCap            int           `mapstructure:"name_cap"`
	SendEmailDefault   bool          `mapstructure:"send_email_default"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// AuthConfig captures the invitation authorization policy.
type AuthConfig struct {
	AllowedGroupIDs    []string `mapstructure:"allowed_group_ids"`
	LocalBypass        bool     `mapstructure:"local_bypass"`
	EnforceGroups      bool     `mapstructure:"enforce_groups"`
	ManagedEnvironment bool     `mapstructure:"managed_environment"`
}

// GraphConfig holds directory service credentials.
type GraphConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	BaseURL      string `mapstructure:"base_url"`
	Scope        string `mapstructure:"scope"`
}

// MonitoringConfig enables metrics endpoints.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// AuthzServiceConfig converts the auth section into the authorization
// service's policy struct.
func (a AuthConfig) AuthzServiceConfig() services.AuthzConfig {
	groups := make([]string, 0, len(a.AllowedGroupIDs))
	for _, g := range a.AllowedGroupIDs {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}

	return services.AuthzConfig{
		ManagedEnvironment: a.ManagedEnvironment,
		LocalBypass:        a.LocalBypass,
		EnforceGroups:      a.EnforceGroups,
		AllowedGroupIDs:    groups,
	}
}

// BulkServiceConfig converts the invite section into the normalizer's config.
func (i InviteConfig) BulkServiceConfig() services.BulkConfig {
	return services.BulkConfig{
		RowCap:             i.RowCap,
		NameCap:            i.NameCap,
		DefaultRedirectURL: i.DefaultRedirectURL,
		DefaultSendEmail:   i.SendEmailDefault,
	}
}

// ClientConfig converts the graph section into the Graph client's config.
func (g GraphConfig) ClientConfig() graph.Config {
	return graph.Config{
		TenantID:     strings.TrimSpace(g.TenantID),
		ClientID:     strings.TrimSpace(g.ClientID),
		ClientSecret: strings.TrimSpace(g.ClientSecret),
		BaseURL:      strings.TrimSpace(g.BaseURL),
		Scope:        strings.TrimSpace(g.Scope),
	}
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("GUESTGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("invite.default_redirect_url", "https://myapplications.microsoft.com")
	v.SetDefault("invite.row_cap", 100)
	v.SetDefault("invite.name_cap", 40)
	v.SetDefault("invite.send_email_default", true)
	v.SetDefault("invite.timeout", "12s")

	v.SetDefault("auth.allowed_group_ids", []string{})
	v.SetDefault("auth.local_bypass", false)
	v.SetDefault("auth.enforce_groups", true)
	// The managed hosting platform is recognised by the site name it injects
	// into the environment; config may still override in either direction.
	v.SetDefault("auth.managed_environment", os.Getenv("WEBSITE_SITE_NAME") != "")

	v.SetDefault("graph.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("graph.scope", "https://graph.microsoft.com/.default")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
