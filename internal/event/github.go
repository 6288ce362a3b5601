package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMissingEnv is returned when a required GitHub Actions variable is not set.
var ErrMissingEnv = errors.New("missing GitHub Actions environment variable")

// githubPayload is the subset of the GitHub webhook payload found at GITHUB_EVENT_PATH
// that is needed to pick a comparison base. Push events carry "before",
// pull_request events carry "pull_request.base".
type githubPayload struct {
	Before      string `json:"before"`
	PullRequest *struct {
		Base struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"base"`
	} `json:"pull_request"`
}

// LoadGitHub builds a Context from the GitHub Actions runner environment.
// getenv is usually os.Getenv; tests pass a map lookup instead.
//
// GITHUB_REF and GITHUB_SHA are required. The event payload is optional: when
// GITHUB_EVENT_PATH is unset the result is a push context without a before commit.
func LoadGitHub(getenv func(string) string) (Context, error) {
	ref := getenv("GITHUB_REF")
	if ref == "" {
		return Context{}, fmt.Errorf("%w: GITHUB_REF", ErrMissingEnv)
	}
	sha := getenv("GITHUB_SHA")
	if sha == "" {
		return Context{}, fmt.Errorf("%w: GITHUB_SHA", ErrMissingEnv)
	}

	ev := Context{Ref: ref, SHA: sha}

	path := getenv("GITHUB_EVENT_PATH")
	if path == "" {
		return ev, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Context{}, fmt.Errorf("failed to read event payload %s: %w", path, err)
	}

	payload, err := parseGitHubPayload(data)
	if err != nil {
		return Context{}, fmt.Errorf("failed to parse event payload %s: %w", path, err)
	}

	if !isNullSHA(payload.Before) {
		ev.Before = payload.Before
	}
	if payload.PullRequest != nil {
		ev.PullRequest = &PullRequest{
			BaseRef: payload.PullRequest.Base.Ref,
			BaseSHA: payload.PullRequest.Base.SHA,
		}
	}

	return ev, nil
}

func parseGitHubPayload(data []byte) (*githubPayload, error) {
	var payload githubPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// isNullSHA reports whether sha is the all-zero object name GitHub sends as
// "before" when a push creates the branch.
func isNullSHA(sha string) bool {
	return sha != "" && strings.Trim(sha, "0") == ""
}
