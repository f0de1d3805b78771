// Package config implements the JSON configuration loader (AS2):
// service profiles and dataset contexts, with hostname-based profile
// override at load time. See spec.md section 6.
package config

import (
	"os"

	"github.com/goccy/go-json"

	"github.com/sdss-spectro/spectro-service/internal/dataset"
	"github.com/sdss-spectro/spectro-service/internal/errs"
)

// Profile is one named service deployment profile: "public", "external",
// or any locally-defined variant, plus the host/port fields a
// hostname-matched profile may override on top of "default".
type Profile struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
}

// ContextConfig is the on-disk shape of a dataset context; Build turns
// it into a dataset.Context.
type ContextConfig struct {
	Description     string            `json:"description"`
	Release         string            `json:"release"`
	MetadataRelease string            `json:"metadataRelease"`
	DefaultSurvey   string            `json:"defaultSurvey"`
	CacheRoot       string            `json:"cacheRoot"`
	AuthRoot        string            `json:"authRoot"`
	PermittedRun2d  []string          `json:"permittedRun2d"`
	Catalog         string            `json:"catalog"`
	Catalogs        map[string]string `json:"catalogs"`
}

// Build converts a ContextConfig into a dataset.Context under name.
func (c ContextConfig) Build(name string) *dataset.Context {
	catalogs := make([]string, 0, len(c.Catalogs))
	for name := range c.Catalogs {
		catalogs = append(catalogs, name)
	}
	return &dataset.Context{
		Name:            name,
		Release:         c.Release,
		MetadataRelease: c.MetadataRelease,
		DefaultSurvey:   c.DefaultSurvey,
		CacheRoot:       c.CacheRoot,
		AuthRoot:        c.AuthRoot,
		PermittedRun2d:  c.PermittedRun2d,
		Catalog:         c.Catalog,
		Catalogs:        catalogs,
	}
}

// Config is the top-level JSON document of spec.md section 6.
type Config struct {
	Profiles map[string]Profile       `json:"profiles"`
	Contexts map[string]ContextConfig `json:"contexts"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindParamError, err, "reading config file %s", path)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errs.Wrap(errs.KindParamError, err, "parsing config file %s", path)
	}
	return &cfg, nil
}

// Validate checks the minimal shape every deployment needs: a "default"
// profile and at least one context.
func (c *Config) Validate() error {
	if _, ok := c.Profiles["default"]; !ok {
		return errs.New(errs.KindParamError, "config has no \"default\" profile")
	}
	if len(c.Contexts) == 0 {
		return errs.New(errs.KindParamError, "config declares no dataset contexts")
	}
	for name, ctx := range c.Contexts {
		if ctx.Release == "" {
			return errs.New(errs.KindParamError, "context %q missing release", name)
		}
		if ctx.CacheRoot == "" && ctx.AuthRoot == "" {
			return errs.New(errs.KindParamError, "context %q has neither cacheRoot nor authRoot", name)
		}
	}
	return nil
}

// ActiveProfile returns the "default" profile, overridden field-by-field
// by the profile whose name matches hostname, if one exists -- spec.md
// section 6: "If the local hostname matches a profile name, that
// profile's fields override the default profile at load time."
func (c *Config) ActiveProfile(hostname string) Profile {
	active := c.Profiles["default"]
	override, ok := c.Profiles[hostname]
	if !ok {
		return active
	}
	if override.Type != "" {
		active.Type = override.Type
	}
	if override.Description != "" {
		active.Description = override.Description
	}
	if override.Host != "" {
		active.Host = override.Host
	}
	if override.Port != 0 {
		active.Port = override.Port
	}
	return active
}

// Registry builds a dataset.Registry from every configured context,
// served by the given catalog client.
func (c *Config) Registry(catalog dataset.CatalogClient) *dataset.Registry {
	contexts := make(map[string]*dataset.Context, len(c.Contexts))
	for name, cc := range c.Contexts {
		contexts[name] = cc.Build(name)
	}
	return dataset.NewRegistry(contexts, catalog)
}
