// Package event describes the CI run a coverage measurement belongs to.
package event

// Context is an immutable snapshot of the CI event that triggered the run.
// It is built once per run and passed by value; nothing in this module mutates it.
type Context struct {
	// Ref is the ref the run was triggered for (e.g., "refs/heads/main").
	Ref string
	// SHA is the commit under test.
	SHA string
	// Before is the commit the branch pointed to before a push.
	// Empty for the first push of a branch or when the platform does not report it.
	Before string
	// PullRequest is set for pull request events only.
	PullRequest *PullRequest
}

// PullRequest holds the base side of a pull request.
type PullRequest struct {
	// BaseRef is the branch the pull request targets (e.g., "main").
	BaseRef string
	// BaseSHA is the commit at the tip of BaseRef when the event fired.
	BaseSHA string
}

// IsPullRequest reports whether the event carries a pull request descriptor.
func (c Context) IsPullRequest() bool {
	return c.PullRequest != nil
}
