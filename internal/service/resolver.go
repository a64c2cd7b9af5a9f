package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const manifestPath = ".lean-ci.json"

// GitHubResolver reads a repository's build manifest through the GitHub
// contents API and extracts its declared upstream dependencies.
type GitHubResolver struct {
	client  *http.Client
	baseURL string
}

// NewGitHubResolver creates a resolver authenticated with a GitHub access
// token.
func NewGitHubResolver(token string) *GitHubResolver {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &GitHubResolver{
		client:  oauth2.NewClient(context.Background(), src),
		baseURL: "https://api.github.com",
	}
}

type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type buildManifest struct {
	Dependencies []string `json:"dependencies"`
}

// Dependencies returns the upstream repository names declared in the
// manifest at the repository root. A repository without a manifest simply
// has no upstreams.
func (r *GitHubResolver) Dependencies(ctx context.Context, repoName string) ([]string, error) {
	url := fmt.Sprintf("%s/repos/%s/contents/%s", r.baseURL, repoName, manifestPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest of %s: %w", repoName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest fetch for %s returned status %d", repoName, resp.StatusCode)
	}

	var contents contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&contents); err != nil {
		return nil, fmt.Errorf("decode contents response: %w", err)
	}

	raw := []byte(contents.Content)
	if contents.Encoding == "base64" {
		// GitHub wraps base64 payloads at 60 columns.
		raw, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(contents.Content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("decode manifest content: %w", err)
		}
	}

	var manifest buildManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest of %s: %w", repoName, err)
	}
	return manifest.Dependencies, nil
}
