package event

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// LoadGit builds a Context from a local git checkout, for running outside CI.
// The current branch plays the role of the pushed ref and HEAD~1 the role of the
// before commit. A detached HEAD yields an empty Ref and a root commit an empty Before,
// both of which make base resolution skip the comparison.
func LoadGit(ctx context.Context, workDir string) (Context, error) {
	sha, err := git(ctx, workDir, "rev-parse", "HEAD")
	if err != nil {
		return Context{}, err
	}

	// symbolic-ref -q exits 1 without output on a detached HEAD
	ref, err := git(ctx, workDir, "symbolic-ref", "-q", "HEAD")
	if err != nil && !isExitCode(err, 1) {
		return Context{}, err
	}

	// --verify -q exits 1 without output when HEAD has no parent
	before, err := git(ctx, workDir, "rev-parse", "--verify", "-q", "HEAD~1")
	if err != nil && !isExitCode(err, 1) {
		return Context{}, err
	}

	return Context{Ref: ref, SHA: sha, Before: before}, nil
}

// git runs a git subcommand in workDir and returns its trimmed stdout.
// If workDir is empty, the current working directory is used.
func git(ctx context.Context, workDir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if workDir != "" {
		cmd.Dir = workDir
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", &gitError{args: args, stderr: strings.TrimSpace(stderr.String()), exit: exitErr}
		}
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

type gitError struct {
	args   []string
	stderr string
	exit   *exec.ExitError
}

func (e *gitError) Error() string {
	return fmt.Sprintf("git %s failed: %s", strings.Join(e.args, " "), e.stderr)
}

func (e *gitError) Unwrap() error {
	return e.exit
}

func isExitCode(err error, code int) bool {
	gitErr, ok := err.(*gitError)
	return ok && gitErr.exit.ExitCode() == code
}
