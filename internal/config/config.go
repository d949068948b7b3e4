// Package config implements the repository's Config & Credentials store:
// an INI-style `config` file with `[core]`, `[user]`, and quoted
// `[remote "<name>"]` sections, plus token storage.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
)

// Protocol classifies a remote URL's transport.
type Protocol string

const (
	ProtocolHTTPS   Protocol = "https"
	ProtocolSSH     Protocol = "ssh"
	ProtocolLocal   Protocol = "local"
	ProtocolUnknown Protocol = "unknown"
)

// Remote is one `[remote "<name>"]` record.
type Remote struct {
	Name     string
	URL      string
	Protocol Protocol
}

// Config wraps the parsed `config` INI file.
type Config struct {
	path string
	file *ini.File
}

// Load reads the INI file at path. A missing file yields an empty Config
// (equivalent to a freshly-initialized repository before any `git config`
// or `remote add` call).
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{path: path, file: ini.Empty()}, nil
	}
	f, err := ini.LoadSources(ini.LoadOptions{AllowNonUniqueSections: false}, path)
	if err != nil {
		return nil, gyatterrs.Wrap(gyatterrs.BadFormat, "config.Load", err)
	}
	return &Config{path: path, file: f}, nil
}

// Save rewrites the config file in place.
func (c *Config) Save() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "config.Save", err)
	}
	if err := c.file.SaveTo(c.path); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "config.Save", err)
	}
	return nil
}

// UserName returns user.name, or "" if unset.
func (c *Config) UserName() string {
	return c.file.Section("user").Key("name").String()
}

// UserEmail returns user.email, or "" if unset.
func (c *Config) UserEmail() string {
	return c.file.Section("user").Key("email").String()
}

// SetUser sets user.name and user.email.
func (c *Config) SetUser(name, email string) {
	sec := c.file.Section("user")
	sec.Key("name").SetValue(name)
	sec.Key("email").SetValue(email)
}

// remoteSectionName builds the quoted subsection name ini.v1 expects for
// `[remote "origin"]`.
func remoteSectionName(name string) string {
	return `remote "` + name + `"`
}

// AddRemote adds a new `[remote "<name>"]` section grouping `url` under it
// to the in-memory config; Save writes the change to the file.
func (c *Config) AddRemote(name, url string) error {
	if _, err := c.file.GetSection(remoteSectionName(name)); err == nil {
		return gyatterrs.New(gyatterrs.AlreadyExists, "config.AddRemote: remote "+name+" already exists")
	}
	sec, err := c.file.NewSection(remoteSectionName(name))
	if err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "config.AddRemote", err)
	}
	sec.Key("url").SetValue(url)
	return nil
}

// Remote returns the named remote's record, or ok=false if not configured.
func (c *Config) Remote(name string) (Remote, bool) {
	sec, err := c.file.GetSection(remoteSectionName(name))
	if err != nil {
		return Remote{}, false
	}
	url := sec.Key("url").String()
	return Remote{Name: name, URL: url, Protocol: DetectProtocol(url)}, true
}

// Remotes returns every configured remote, in file order.
func (c *Config) Remotes() []Remote {
	var out []Remote
	for _, sec := range c.file.Sections() {
		name := sec.Name()
		if !strings.HasPrefix(name, "remote ") {
			continue
		}
		remoteName := strings.TrimSuffix(strings.TrimPrefix(name, `remote "`), `"`)
		url := sec.Key("url").String()
		out = append(out, Remote{Name: remoteName, URL: url, Protocol: DetectProtocol(url)})
	}
	return out
}

// DetectProtocol classifies a remote URL by its scheme or path shape.
func DetectProtocol(url string) Protocol {
	switch {
	case strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://"):
		return ProtocolHTTPS
	case strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "ssh://"):
		return ProtocolSSH
	case strings.HasPrefix(url, "/") || strings.HasPrefix(url, "."):
		return ProtocolLocal
	default:
		return ProtocolUnknown
	}
}
