// Package git is a small facade over go-git covering what data versioning needs:
// staging paths, committing, annotated tags and pushing a branch and its tags.
//
// Repositories are opened through a go-billy filesystem, so the same code runs
// against an on-disk checkout (osfs) or an in-memory one (memfs) in tests.
//
//	repo, err := git.OpenDir(ctx, projectDir, git.WithAuth(git.EnvAuth(user, token, "")))
//	if err != nil {
//	    return err
//	}
//	rel, err := repo.Rel(filepath.Join(dataRoot, "labels.json.dvc"))
//	...
//	if err := repo.Add(ctx, rel); err != nil {
//	    return err
//	}
//	hash, err := repo.Commit(ctx, "Updated data version from v1 to v2", sig, git.CommitOpts{})
//
// Errors wrap the sentinel values in errors.go and can be checked with errors.Is.
package git
