package git

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Pre-compiled regexes for branch name sanitization.
var (
	unsafeCharsRegex = regexp.MustCompile(`[^A-Za-z0-9\-_/.]+`)
	multiDashRegex   = regexp.MustCompile(`-+`)
	safeBranchRegex  = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_\-]*$`)
)

// sanitizeBranchName transforms an arbitrary string into a Git branch name
// friendly string. Case is kept so names differing only in case stay distinct.
func sanitizeBranchName(s string) string {
	if safeBranchRegex.MatchString(s) {
		return s
	}
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeCharsRegex.ReplaceAllString(s, "")
	s = multiDashRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-/")
	return s
}

func open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return repo, nil
}

// FindRepoRoot returns the top-level directory of the working tree that
// contains path.
func FindRepoRoot(path string) (string, error) {
	repo, err := open(path)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("repository at %s has no working tree: %w", path, err)
	}
	return wt.Filesystem.Root(), nil
}

// IsGitRepo checks if the given path is within a git repository
func IsGitRepo(path string) bool {
	_, err := FindRepoRoot(path)
	return err == nil
}

// BranchExists reports whether refs/heads/<branch> exists.
func BranchExists(repoRoot, branch string) (bool, error) {
	repo, err := open(repoRoot)
	if err != nil {
		return false, err
	}
	_, err = repo.Reference(plumbing.NewBranchReferenceName(branch), false)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error checking branch %s existence: %w", branch, err)
	}
	return true, nil
}

// GetDefaultBranch returns main or master, preferring main.
func GetDefaultBranch(repoRoot string) (string, error) {
	for _, candidate := range []string{"main", "master"} {
		ok, err := BranchExists(repoRoot, candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not determine default branch for %s", repoRoot)
}

// CurrentBranch returns the short name of HEAD, or "" when HEAD is detached.
func CurrentBranch(repoRoot string) (string, error) {
	repo, err := open(repoRoot)
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", nil
	}
	return head.Name().Short(), nil
}
