// Package forge implements syncing with a GitHub forge: pushing a local
// branch to a GitHub repository through the Git Data API, and cloning a
// forge repository by downloading and extracting a branch zipball. Most
// calls go through github.com/google/go-github/v66 for its typed Git Data
// API wrappers; the one place concurrency matters — parallel blob
// creation — bypasses go-github's own transport and goes straight through
// internal/httpclient's bounded worker pool and batch-blob helper.
package forge

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/gyattvc/gyatt/internal/config"
	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/httpclient"
	"github.com/gyattvc/gyatt/internal/objhash"
	"github.com/gyattvc/gyatt/internal/repo"
)

// commonBranchNames is the small ordered list of likely branch names tried
// after the discovered default, before falling back to any remaining
// discovered branch.
var commonBranchNames = []string{"main", "master", "trunk", "develop"}

// defaultCodeloadBaseURL is GitHub's tarball/zipball download host.
const defaultCodeloadBaseURL = "https://codeload.github.com"

// Syncer talks to a single forge (github.com) on behalf of one repository's
// credentials.
type Syncer struct {
	http            *httpclient.Client
	gh              *github.Client
	token           string
	hasToken        bool
	codeloadBaseURL string
}

// New builds a Syncer, resolving a token from gitDir via
// config.ResolveToken. A missing token is not itself an error: read-only
// operations (clone of a public repo) work without one; any write path
// checks hasToken explicitly.
func New(client *httpclient.Client, gitDir string) *Syncer {
	token, ok := config.ResolveToken(gitDir)
	if !ok {
		return &Syncer{http: client, gh: github.NewClient(nil), codeloadBaseURL: defaultCodeloadBaseURL}
	}
	authed := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	return &Syncer{
		http: client, gh: github.NewClient(authed), token: token, hasToken: true,
		codeloadBaseURL: defaultCodeloadBaseURL,
	}
}

// parseOwnerRepo accepts "owner/repo", "https://github.com/owner/repo",
// scp-style "git@github.com:owner/repo", or "...repo.git" and returns the
// owner/repo pair.
func parseOwnerRepo(ref string) (owner, name string, err error) {
	s := strings.TrimSuffix(ref, "/")
	s = strings.TrimSuffix(s, ".git")
	if i := strings.Index(s, "github.com/"); i >= 0 {
		s = s[i+len("github.com/"):]
	} else if i := strings.Index(s, "github.com:"); i >= 0 {
		s = s[i+len("github.com:"):]
	}
	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return "", "", gyatterrs.New(gyatterrs.BadFormat, "forge.parseOwnerRepo: not an owner/repo reference")
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

func isNotFoundErr(err error) bool {
	var ghErr *github.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
}

// wrapGithubErr turns a go-github error into the structured taxonomy:
// 401/403 become AuthRequired (credential problem), any other non-2xx
// becomes RemoteError carrying the status and body, anything else
// (connection failure before a response was even parsed) becomes IoError.
func wrapGithubErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status := ghErr.Response.StatusCode
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return gyatterrs.New(gyatterrs.AuthRequired, op)
		}
		return gyatterrs.Remote(op, status, ghErr.Message)
	}
	return gyatterrs.Wrap(gyatterrs.IoError, op, err)
}

// Push runs the forge push path for the repository's branch against the
// named remote.
func (s *Syncer) Push(ctx context.Context, r *repo.Repository, remoteName, branch string) error {
	if !s.hasToken {
		return gyatterrs.New(gyatterrs.AuthRequired, "forge.Push")
	}
	rem, ok := r.Config.Remote(remoteName)
	if !ok {
		return gyatterrs.New(gyatterrs.NotFound, "forge.Push: no such remote "+remoteName)
	}
	owner, name, err := parseOwnerRepo(rem.URL)
	if err != nil {
		return err
	}

	head, ok, err := r.Refs.ReadRef(branch)
	if err != nil {
		return err
	}
	if !ok {
		return gyatterrs.New(gyatterrs.NoCommitsYet, "forge.Push: branch "+branch+" has no commits")
	}
	localCommit, err := r.Objects.GetCommit(head)
	if err != nil {
		return err
	}
	files, err := r.FilesAt(head)
	if err != nil {
		return err
	}
	paths := filterPushPaths(r, files)

	// Step 1: ensure the remote repository exists.
	if _, _, err := s.gh.Repositories.Get(ctx, owner, name); err != nil {
		if !isNotFoundErr(err) {
			return wrapGithubErr("forge.Push: get repo", err)
		}
		if _, _, err := s.gh.Repositories.Create(ctx, "", &github.Repository{Name: github.String(name)}); err != nil {
			return wrapGithubErr("forge.Push: create repo", err)
		}
	}

	// Step 3: read the remote ref if present. A missing ref alone does not
	// mean the repository is empty — the branch may simply be new — so the
	// Contents-API bootstrap (step 2) only runs when the repository has no
	// branches at all.
	remoteRef, _, refErr := s.gh.Git.GetRef(ctx, owner, name, "heads/"+branch)
	if refErr != nil && !isNotFoundErr(refErr) {
		return wrapGithubErr("forge.Push: read remote ref", refErr)
	}
	refMissing := refErr != nil

	if refMissing {
		branches, _, err := s.gh.Repositories.ListBranches(ctx, owner, name, nil)
		if err != nil {
			return wrapGithubErr("forge.Push: list branches", err)
		}
		if len(branches) == 0 {
			if len(paths) == 0 {
				return gyatterrs.New(gyatterrs.NothingToCommit, "forge.Push: nothing to bootstrap an empty remote with")
			}
			first := paths[0]
			blob, err := r.Objects.GetBlob(files[first])
			if err != nil {
				return err
			}
			_, _, err = s.gh.Repositories.CreateFile(ctx, owner, name, first, &github.RepositoryContentFileOptions{
				Message: github.String(localCommit.Message),
				Content: blob.Data,
				Branch:  github.String(branch),
				Committer: &github.CommitAuthor{
					Name:  github.String(localCommit.Committer.Name),
					Email: github.String(localCommit.Committer.Email),
				},
			})
			if err != nil {
				return wrapGithubErr("forge.Push: bootstrap contents API", err)
			}
			return nil
		}
	}

	var parentSHA string
	if !refMissing {
		parentSHA = remoteRef.GetObject().GetSHA()
	}

	// Step 4: parallel blob creation.
	blobSHAs, err := s.createBlobs(ctx, owner, name, paths, files, r)
	if err != nil {
		return err
	}

	// Step 5: tree creation.
	var baseTree string
	if parentSHA != "" {
		parentCommit, _, err := s.gh.Git.GetCommit(ctx, owner, name, parentSHA)
		if err != nil {
			return wrapGithubErr("forge.Push: get parent commit", err)
		}
		baseTree = parentCommit.GetTree().GetSHA()
	}
	entries := make([]*github.TreeEntry, len(paths))
	for i, p := range paths {
		entries[i] = &github.TreeEntry{
			Path: github.String(p),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  github.String(blobSHAs[i]),
		}
	}
	tree, _, err := s.gh.Git.CreateTree(ctx, owner, name, baseTree, entries)
	if err != nil {
		return wrapGithubErr("forge.Push: create tree", err)
	}

	// Step 6: commit creation.
	var parents []*github.Commit
	if parentSHA != "" {
		parents = []*github.Commit{{SHA: github.String(parentSHA)}}
	}
	ghCommit, _, err := s.gh.Git.CreateCommit(ctx, owner, name, &github.Commit{
		Message: github.String(localCommit.Message),
		Tree:    tree,
		Parents: parents,
		Author: &github.CommitAuthor{
			Name:  github.String(localCommit.Author.Name),
			Email: github.String(localCommit.Author.Email),
		},
		Committer: &github.CommitAuthor{
			Name:  github.String(localCommit.Committer.Name),
			Email: github.String(localCommit.Committer.Email),
		},
	}, nil)
	if err != nil {
		return wrapGithubErr("forge.Push: create commit", err)
	}

	// Step 7: ref update.
	newRef := &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: ghCommit.SHA},
	}
	if refMissing {
		if _, _, err := s.gh.Git.CreateRef(ctx, owner, name, newRef); err != nil {
			return wrapGithubErr("forge.Push: create ref", err)
		}
	} else {
		if _, _, err := s.gh.Git.UpdateRef(ctx, owner, name, newRef, false); err != nil {
			return wrapGithubErr("forge.Push: update ref", err)
		}
	}
	return nil
}

// filterPushPaths excludes ignored paths plus the hardcoded system-path
// deny list, returning a sorted, deterministic order.
func filterPushPaths(r *repo.Repository, files map[string]objhash.Hash) []string {
	deny := []string{repo.MetadataDirName, ".git", ".DS_Store", "Thumbs.db"}
	isDenied := func(p string) bool {
		for _, d := range deny {
			if p == d || strings.HasPrefix(p, d+"/") {
				return true
			}
		}
		return false
	}
	paths := make([]string, 0, len(files))
	for p := range files {
		if r.Ignore.IsIgnored(p, false) || isDenied(p) {
			continue
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

type blobCreateRequest struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type blobCreateResponse struct {
	SHA string `json:"sha"`
}

// createBlobs uploads each of paths as a GitHub blob, bounded-parallel via
// internal/httpclient's BatchBlob helper, and returns the resulting SHAs in
// the same order as paths. Any failed or missing blob aborts before the
// caller proceeds to tree creation.
func (s *Syncer) createBlobs(ctx context.Context, owner, name string, paths []string, files map[string]objhash.Hash, r *repo.Repository) ([]string, error) {
	items := make([]httpclient.BatchItem, len(paths))
	url := fmt.Sprintf("%srepos/%s/%s/git/blobs", s.gh.BaseURL.String(), owner, name)
	for i, p := range paths {
		blob, err := r.Objects.GetBlob(files[p])
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(blobCreateRequest{
			Content:  base64.StdEncoding.EncodeToString(blob.Data),
			Encoding: "base64",
		})
		if err != nil {
			return nil, gyatterrs.Wrap(gyatterrs.BadFormat, "forge.createBlobs", err)
		}
		items[i] = httpclient.BatchItem{Index: i, Request: httpclient.Request{
			Method: http.MethodPost,
			URL:    url,
			Headers: http.Header{
				"Authorization": []string{"token " + s.token},
				"Accept":        []string{"application/vnd.github.v3+json"},
				"Content-Type":  []string{"application/json"},
			},
			Body: body,
		}}
	}

	results := s.http.BatchBlob(ctx, items, runtime.NumCPU())
	shas := make([]string, len(paths))
	for _, res := range results {
		if res.Err != nil {
			slog.Default().Warn("blob upload failed", "path", paths[res.Index], "error", res.Err)
			return nil, gyatterrs.Wrap(gyatterrs.RemoteError, "forge.createBlobs", res.Err)
		}
		if res.Response.StatusCode < 200 || res.Response.StatusCode >= 300 {
			slog.Default().Warn("blob upload rejected", "path", paths[res.Index], "status", res.Response.StatusCode)
			return nil, gyatterrs.Remote("forge.createBlobs", res.Response.StatusCode, string(res.Response.Body))
		}
		var parsed blobCreateResponse
		if err := json.Unmarshal(res.Response.Body, &parsed); err != nil {
			return nil, gyatterrs.Wrap(gyatterrs.BadFormat, "forge.createBlobs", err)
		}
		if parsed.SHA == "" {
			return nil, gyatterrs.New(gyatterrs.RemoteError, fmt.Sprintf("forge.createBlobs: missing sha for %s", paths[res.Index]))
		}
		shas[res.Index] = parsed.SHA
	}
	return shas, nil
}

// buildCandidateOrder returns the branches to try downloading, in order:
// the discovered default, then commonBranchNames, then any remaining
// discovered branch.
func buildCandidateOrder(defaultBranch string, discovered []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(n string) {
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
	}
	add(defaultBranch)
	for _, n := range commonBranchNames {
		add(n)
	}
	for _, n := range discovered {
		add(n)
	}
	return out
}

// CloneForge confirms the repository exists and discovers its default
// branch, tries downloading a zipball of a plausible branch, extracts it
// into target, and turns the result into a fresh local repository with one
// synthetic commit.
func (s *Syncer) CloneForge(ctx context.Context, repoRef, target string) error {
	owner, name, err := parseOwnerRepo(repoRef)
	if err != nil {
		return err
	}

	ghRepo, _, err := s.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		if isNotFoundErr(err) {
			return gyatterrs.New(gyatterrs.NotFound, "forge.CloneForge")
		}
		return wrapGithubErr("forge.CloneForge: get repo", err)
	}

	branches, _, err := s.gh.Repositories.ListBranches(ctx, owner, name, nil)
	if err != nil {
		return wrapGithubErr("forge.CloneForge: list branches", err)
	}
	discovered := make([]string, 0, len(branches))
	for _, b := range branches {
		discovered = append(discovered, b.GetName())
	}

	var zipData []byte
	var chosenBranch string
	for _, b := range buildCandidateOrder(ghRepo.GetDefaultBranch(), discovered) {
		url := fmt.Sprintf("%s/%s/%s/zip/refs/heads/%s", s.codeloadBaseURL, owner, name, b)
		resp, err := s.http.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: url})
		if err != nil {
			continue
		}
		if resp.StatusCode == http.StatusOK {
			zipData = resp.Body
			chosenBranch = b
			break
		}
	}
	if zipData == nil {
		return gyatterrs.New(gyatterrs.NotFound, "forge.CloneForge: no downloadable branch zipball found")
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "forge.CloneForge", err)
	}
	if err := extractZip(zipData, target); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "forge.CloneForge: extraction failed", err)
	}

	local, err := repo.Init(target)
	if err != nil {
		return err
	}
	if _, err := local.AddAll(); err != nil {
		return err
	}
	_, err = local.Commit(
		fmt.Sprintf("Imported from %s/%s@%s", owner, name, chosenBranch),
		repo.Identity{Name: "gyatt-clone", Email: "gyatt-clone@localhost"},
	)
	if err != nil {
		return err
	}
	if err := local.Config.AddRemote("origin", fmt.Sprintf("https://github.com/%s/%s", owner, name)); err != nil {
		return err
	}
	return local.Config.Save()
}

// extractZip unpacks a GitHub codeload zipball into dir, stripping the
// single top-level "<owner>-<repo>-<ref>/" directory GitHub always wraps
// the archive in.
func extractZip(data []byte, dir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	var stripPrefix string
	for _, f := range zr.File {
		if i := strings.IndexByte(f.Name, '/'); i >= 0 {
			stripPrefix = f.Name[:i+1]
			break
		}
	}
	for _, f := range zr.File {
		rel := strings.TrimPrefix(f.Name, stripPrefix)
		if rel == "" {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(filepath.Separator)) {
			return fmt.Errorf("zip entry escapes target directory: %s", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		closeErr := out.Close()
		if copyErr != nil {
			return copyErr
		}
		if closeErr != nil {
			return closeErr
		}
	}
	return nil
}
