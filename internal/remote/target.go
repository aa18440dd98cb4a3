package remote

import (
	"fmt"
	"net/url"
	pathpkg "path"
	"strconv"
	"strings"
)

// Scheme prefixes remote scan roots.
const Scheme = "sftp://"

const (
	defaultRemotePath = "."
	defaultPort       = 22
)

// Target is a parsed sftp://user@host[:port]/path root.
type Target struct {
	User string
	Host string
	Port int
	Path string
}

// IsRemote reports whether root names a remote scan root.
func IsRemote(root string) bool {
	return strings.HasPrefix(root, Scheme)
}

// ParseTarget parses an sftp:// root. A missing port falls back to
// defaultPortOverride when it is non-zero, otherwise 22. A missing path
// means the login directory.
func ParseTarget(raw string, defaultPortOverride int) (Target, error) {
	if !IsRemote(raw) {
		return Target{}, fmt.Errorf("invalid remote root %q: expected %suser@host[:port]/path", raw, Scheme)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid remote root %q: %w", raw, err)
	}

	user, host, err := parseSSHTarget(u.User.Username() + "@" + u.Hostname())
	if err != nil {
		return Target{}, err
	}

	port := defaultPort
	if defaultPortOverride > 0 {
		port = defaultPortOverride
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return Target{}, fmt.Errorf("invalid port in %q: %w", raw, err)
		}
	}
	if port < 1 || port > 65535 {
		return Target{}, fmt.Errorf("ssh port must be between 1 and 65535")
	}

	return Target{User: user, Host: host, Port: port, Path: cleanRemotePath(u.Path)}, nil
}

// Location renders the canonical root string for a resolved remote path.
func (t Target) Location(remotePath string) string {
	host := t.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if t.Port != defaultPort {
		host += ":" + strconv.Itoa(t.Port)
	}
	return Scheme + t.User + "@" + host + cleanRemotePath(remotePath)
}

// Address is the user@host form used in prompts.
func (t Target) Address() string {
	return t.User + "@" + t.Host
}

func parseSSHTarget(target string) (string, string, error) {
	if strings.TrimSpace(target) == "" {
		return "", "", fmt.Errorf("remote target is required")
	}

	user, host, ok := strings.Cut(target, "@")
	if !ok || user == "" || host == "" {
		return "", "", fmt.Errorf("invalid remote target %q: expected user@host", target)
	}

	return user, host, nil
}

func cleanRemotePath(p string) string {
	if p == "" {
		return defaultRemotePath
	}
	clean := pathpkg.Clean(strings.ReplaceAll(p, "\\", "/"))
	if clean == "" {
		return defaultRemotePath
	}
	return clean
}
