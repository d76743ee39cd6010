package git

import (
	"context"
	"strings"
)

// hostedDomains lists origins that gh can serve pull request diffs for
var hostedDomains = []string{"github.com"}

// RepoRoot returns the top level of the work tree containing dir
func RepoRoot(ctx context.Context, r Runner, dir string) (string, error) {
	res, err := r.Run(ctx, dir, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	root := strings.TrimSpace(res.Stdout)
	if res.ExitCode != 0 || root == "" {
		return "", ErrNotARepository
	}
	return root, nil
}

// OriginURL returns the fetch URL of the origin remote, or "" when there is none
func OriginURL(ctx context.Context, r Runner, root string) string {
	res, err := r.Run(ctx, root, "git", "remote", "get-url", "origin")
	if err != nil || res.ExitCode != 0 {
		return ""
	}
	return strings.TrimSpace(res.Stdout)
}

// GhAuthenticated reports whether the gh helper is installed and logged in
func GhAuthenticated(ctx context.Context, r Runner, root string) bool {
	res, err := r.Run(ctx, root, "gh", "auth", "status")
	return err == nil && res.ExitCode == 0
}

// IsHostedOrigin reports whether a remote URL points at a recognised hosting domain.
// Handles https://github.com/o/r(.git), ssh://git@github.com/o/r and git@github.com:o/r.
func IsHostedOrigin(url string) bool {
	host := url
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexByte(host, '/'); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = strings.ToLower(host)

	for _, d := range hostedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
