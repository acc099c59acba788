// Package config resolves where reviews are published and with what
// credentials. Settings are layered: built-in defaults, then a TOML file,
// then DRAFTREVIEW_-prefixed environment variables. Whatever the layers do
// not pin down is inferred from the repository's origin remote, so in the
// common case the only thing a user has to provide is a token.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/draftreview/pkg/models"
)

// Token environment variables honored in addition to DRAFTREVIEW_* settings.
const (
	githubTokenEnv = "GH_REVIEW_API_TOKEN"
	gitlabTokenEnv = "GITLAB_TOKEN"
)

// Error is a configuration problem that prevents any work from starting.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "configuration error: " + e.Reason
}

// Config is the on-disk/environment configuration shape.
type Config struct {
	Backend struct {
		Kind    string `koanf:"kind"`     // "github" or "gitlab"; inferred from the remote when empty
		BaseURL string `koanf:"base_url"` // API base for self-hosted instances
		Token   string `koanf:"token"`
		Owner   string `koanf:"owner"`
		Repo    string `koanf:"repo"`
		Remote  string `koanf:"remote"` // git remote to infer from
	} `koanf:"backend"`

	HTTP struct {
		TimeoutSeconds int `koanf:"timeout_seconds"`
	} `koanf:"http"`

	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

// Load reads configuration in layers. configPath, when non-empty, names an
// explicit file that must exist; otherwise the default locations are tried
// in order and silently skipped when absent. gitDir, when non-empty, adds
// <git-dir>/reviews/config.toml to the candidates.
func Load(configPath, gitDir string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"backend.remote":       "origin",
		"http.timeout_seconds": 30,
		"log.level":            "info",
	}, "."), nil); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("loading defaults: %v", err)}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, &Error{Reason: fmt.Sprintf("loading %s: %v", configPath, err)}
		}
	} else {
		candidates := []string{"./draftreview.toml", "$HOME/.draftreview.toml"}
		if gitDir != "" {
			candidates = append(candidates, filepath.Join(gitDir, "reviews", "config.toml"))
		}
		for _, path := range candidates {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	if err := k.Load(env.Provider("DRAFTREVIEW_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "DRAFTREVIEW_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("loading environment variables: %v", err)}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("unmarshalling configuration: %v", err)}
	}
	return &cfg, nil
}

// Target is the fully resolved publish destination for one repository.
type Target struct {
	Credential models.BackendCredential
	Owner      string
	Repo       string
	Timeout    time.Duration
}

// Resolve combines the loaded configuration with the repository's remote URL
// into a complete publish target, token included. remoteURL may be empty
// when the config file pins kind, owner and repo explicitly.
func (c *Config) Resolve(remoteURL string) (*Target, error) {
	target, err := c.ResolveRepo(remoteURL)
	if err != nil {
		return nil, err
	}

	token := c.Backend.Token
	if token == "" {
		token = tokenFromEnv(target.Credential.Kind)
	}
	if token == "" {
		return nil, &Error{Reason: fmt.Sprintf("no token configured for %s: set backend.token, DRAFTREVIEW_BACKEND_TOKEN or %s", target.Credential.Kind, tokenEnvName(target.Credential.Kind))}
	}
	target.Credential.Token = token
	return target, nil
}

// ResolveRepo resolves everything except the token: backend kind, API base
// URL and the owner/repo pair. Drafting needs no credential, so commands
// that never talk to the network use this form.
func (c *Config) ResolveRepo(remoteURL string) (*Target, error) {
	kind := models.BackendKind(c.Backend.Kind)
	owner := c.Backend.Owner
	repo := c.Backend.Repo
	baseURL := c.Backend.BaseURL

	if kind == "" || owner == "" || repo == "" {
		if remoteURL == "" {
			return nil, &Error{Reason: "backend kind, owner and repo are not configured and no git remote is available to infer them from"}
		}
		host, remoteOwner, remoteRepo, err := parseRemoteURL(remoteURL)
		if err != nil {
			return nil, err
		}
		if kind == "" {
			kind, err = kindForHost(host)
			if err != nil {
				return nil, err
			}
		}
		if owner == "" {
			owner = remoteOwner
		}
		if repo == "" {
			repo = remoteRepo
		}
		// Self-hosted GitLab instances serve the API from the same host as
		// the repository; github.com uses a separate API host which the
		// backend fills in itself.
		if baseURL == "" && kind == models.BackendGitLab && host != "gitlab.com" {
			baseURL = "https://" + host
		}
	}

	switch kind {
	case models.BackendGitHub, models.BackendGitLab:
	default:
		return nil, &Error{Reason: fmt.Sprintf("unsupported backend kind %q", kind)}
	}

	timeout := time.Duration(c.HTTP.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Target{
		Credential: models.BackendCredential{
			Kind:    kind,
			BaseURL: baseURL,
		},
		Owner:   owner,
		Repo:    repo,
		Timeout: timeout,
	}, nil
}

func tokenEnvName(kind models.BackendKind) string {
	if kind == models.BackendGitLab {
		return gitlabTokenEnv
	}
	return githubTokenEnv
}

func tokenFromEnv(kind models.BackendKind) string {
	return os.Getenv(tokenEnvName(kind))
}

func kindForHost(host string) (models.BackendKind, error) {
	switch {
	case strings.Contains(host, "github"):
		return models.BackendGitHub, nil
	case strings.Contains(host, "gitlab"):
		return models.BackendGitLab, nil
	}
	return "", &Error{Reason: fmt.Sprintf("cannot tell GitHub from GitLab for host %q: set backend.kind explicitly", host)}
}

var (
	sshRemoteRegexp   = regexp.MustCompile(`^(?:ssh://)?git@([^:/]+)[:/](.+?)(?:\.git)?/?$`)
	httpsRemoteRegexp = regexp.MustCompile(`^https?://(?:[^@/]+@)?([^/]+)/(.+?)(?:\.git)?/?$`)
)

// parseRemoteURL extracts host, owner and repo from the SSH and HTTPS remote
// URL forms git produces. GitLab subgroup paths keep everything before the
// final component as the owner.
func parseRemoteURL(remoteURL string) (host, owner, repo string, err error) {
	remoteURL = strings.TrimSpace(remoteURL)

	var projectPath string
	if m := sshRemoteRegexp.FindStringSubmatch(remoteURL); m != nil {
		host, projectPath = m[1], m[2]
	} else if m := httpsRemoteRegexp.FindStringSubmatch(remoteURL); m != nil {
		host, projectPath = m[1], m[2]
	} else {
		return "", "", "", &Error{Reason: fmt.Sprintf("unrecognized remote URL %q", remoteURL)}
	}

	slash := strings.LastIndex(projectPath, "/")
	if slash <= 0 || slash == len(projectPath)-1 {
		return "", "", "", &Error{Reason: fmt.Sprintf("remote URL %q has no owner/repo path", remoteURL)}
	}
	return host, projectPath[:slash], projectPath[slash+1:], nil
}

// Init writes a commented sample configuration to path. Refuses to
// overwrite an existing file.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return &Error{Reason: fmt.Sprintf("configuration file already exists at %s", path)}
	}

	sample := `# draftreview configuration

[backend]
# kind, owner and repo are inferred from the origin remote when omitted.
# kind = "github"
# owner = "acme"
# repo = "rocket"
# base_url = "https://gitlab.example.com"
# token = "prefer GH_REVIEW_API_TOKEN / GITLAB_TOKEN over storing it here"
remote = "origin"

[http]
timeout_seconds = 30

[log]
level = "info"
`

	return os.WriteFile(path, []byte(sample), 0o644)
}
