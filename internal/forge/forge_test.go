package forge

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-github/v66/github"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/httpclient"
	"github.com/gyattvc/gyatt/internal/repo"
)

func newTestSyncer(t *testing.T, mux *http.ServeMux, codeloadMux *http.ServeMux) *Syncer {
	t.Helper()
	apiSrv := httptest.NewServer(mux)
	t.Cleanup(apiSrv.Close)

	gh := github.NewClient(nil)
	base, err := url.Parse(apiSrv.URL + "/")
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	gh.BaseURL = base
	gh.UploadURL = base

	codeloadBase := ""
	if codeloadMux != nil {
		codeloadSrv := httptest.NewServer(codeloadMux)
		t.Cleanup(codeloadSrv.Close)
		codeloadBase = codeloadSrv.URL
	}

	return &Syncer{
		http:            httpclient.New(httpclient.DefaultConfig(), nil),
		gh:              gh,
		token:           "test-token",
		hasToken:        true,
		codeloadBaseURL: codeloadBase,
	}
}

func newInitedRepo(t *testing.T) *repo.Repository {
	t.Helper()
	dir := t.TempDir()
	r, err := repo.Init(dir)
	if err != nil {
		t.Fatalf("repo.Init: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := r.Add("a.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := r.Commit("first", repo.Identity{Name: "tester", Email: "tester@example.com"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := r.Config.AddRemote("origin", "https://github.com/acme/widgets"); err != nil {
		t.Fatalf("AddRemote: %v", err)
	}
	return r
}

func TestParseOwnerRepo(t *testing.T) {
	cases := []struct {
		in        string
		owner, nm string
	}{
		{"acme/widgets", "acme", "widgets"},
		{"https://github.com/acme/widgets", "acme", "widgets"},
		{"https://github.com/acme/widgets.git", "acme", "widgets"},
		{"git@github.com:acme/widgets.git", "acme", "widgets"},
	}
	for _, c := range cases {
		owner, name, err := parseOwnerRepo(c.in)
		if err != nil {
			t.Fatalf("parseOwnerRepo(%q): %v", c.in, err)
		}
		if owner != c.owner || name != c.nm {
			t.Fatalf("parseOwnerRepo(%q) = (%q,%q), want (%q,%q)", c.in, owner, name, c.owner, c.nm)
		}
	}
}

func TestBuildCandidateOrder(t *testing.T) {
	got := buildCandidateOrder("trunk", []string{"main", "feature-x"})
	want := []string{"trunk", "main", "master", "develop", "feature-x"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPushWithoutTokenFailsAuthRequired(t *testing.T) {
	r := newInitedRepo(t)
	s := &Syncer{http: httpclient.New(httpclient.DefaultConfig(), nil), gh: github.NewClient(nil)}
	err := s.Push(context.Background(), r, "origin", "main")
	if !gyatterrs.Is(err, gyatterrs.AuthRequired) {
		t.Fatalf("Push error = %v, want AuthRequired", err)
	}
}

func TestPushUnknownRemoteFailsNotFound(t *testing.T) {
	r := newInitedRepo(t)
	s := &Syncer{http: httpclient.New(httpclient.DefaultConfig(), nil), gh: github.NewClient(nil), token: "x", hasToken: true}
	err := s.Push(context.Background(), r, "upstream", "main")
	if !gyatterrs.Is(err, gyatterrs.NotFound) {
		t.Fatalf("Push error = %v, want NotFound", err)
	}
}

// TestPushAgainstExistingRemoteCreatesTreeAndCommit exercises the full
// non-empty push path: repo exists, branch ref exists with a parent, blob
// creation round-trips through the batch-blob helper, and the new commit
// is written back as refs/heads/main.
func TestPushAgainstExistingRemoteCreatesTreeAndCommit(t *testing.T) {
	r := newInitedRepo(t)

	const parentSHA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	const parentTreeSHA = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	const newTreeSHA = "cccccccccccccccccccccccccccccccccccccccc"
	const newCommitSHA = "dddddddddddddddddddddddddddddddddddddddd"

	var refUpdated bool

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(github.Repository{Name: github.String("widgets")})
	})
	mux.HandleFunc("/repos/acme/widgets/git/ref/heads/main", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(github.Reference{
			Ref:    github.String("refs/heads/main"),
			Object: &github.GitObject{SHA: github.String(parentSHA)},
		})
	})
	mux.HandleFunc("/repos/acme/widgets/git/commits/"+parentSHA, func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(github.Commit{
			SHA:  github.String(parentSHA),
			Tree: &github.Tree{SHA: github.String(parentTreeSHA)},
		})
	})
	mux.HandleFunc("/repos/acme/widgets/git/blobs", func(w http.ResponseWriter, req *http.Request) {
		var body blobCreateRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode blob body: %v", err)
		}
		if body.Encoding != "base64" {
			t.Fatalf("unexpected encoding %q", body.Encoding)
		}
		if _, err := base64.StdEncoding.DecodeString(body.Content); err != nil {
			t.Fatalf("blob content not base64: %v", err)
		}
		_ = json.NewEncoder(w).Encode(blobCreateResponse{SHA: "blobsha0000000000000000000000000000000"})
	})
	mux.HandleFunc("/repos/acme/widgets/git/trees", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(github.Tree{SHA: github.String(newTreeSHA)})
	})
	mux.HandleFunc("/repos/acme/widgets/git/commits", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(github.Commit{SHA: github.String(newCommitSHA)})
	})
	mux.HandleFunc("/repos/acme/widgets/git/refs/heads/main", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPatch {
			t.Fatalf("expected PATCH, got %s", req.Method)
		}
		refUpdated = true
		_ = json.NewEncoder(w).Encode(github.Reference{Ref: github.String("refs/heads/main")})
	})

	s := newTestSyncer(t, mux, nil)
	if err := s.Push(context.Background(), r, "origin", "main"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !refUpdated {
		t.Fatalf("expected refs/heads/main to be PATCHed")
	}
}

func TestPushAgainstEmptyRemoteBootstrapsViaContentsAPI(t *testing.T) {
	r := newInitedRepo(t)
	var bootstrapped bool

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(github.Repository{Name: github.String("widgets")})
	})
	mux.HandleFunc("/repos/acme/widgets/git/ref/heads/main", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(github.ErrorResponse{Message: "Not Found"})
	})
	mux.HandleFunc("/repos/acme/widgets/branches", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode([]*github.Branch{})
	})
	mux.HandleFunc("/repos/acme/widgets/contents/a.txt", func(w http.ResponseWriter, req *http.Request) {
		bootstrapped = true
		_ = json.NewEncoder(w).Encode(github.RepositoryContentResponse{})
	})

	s := newTestSyncer(t, mux, nil)
	if err := s.Push(context.Background(), r, "origin", "main"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !bootstrapped {
		t.Fatalf("expected Contents API bootstrap to run")
	}
}

// TestPushNewBranchToNonEmptyRemoteCreatesRef covers the branch-is-new but
// repository-is-not-empty case: no Contents-API bootstrap, a rootless
// commit, and the ref created with POST rather than PATCH.
func TestPushNewBranchToNonEmptyRemoteCreatesRef(t *testing.T) {
	r := newInitedRepo(t)
	var refCreated bool

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(github.Repository{Name: github.String("widgets")})
	})
	mux.HandleFunc("/repos/acme/widgets/git/ref/heads/main", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(github.ErrorResponse{Message: "Not Found"})
	})
	mux.HandleFunc("/repos/acme/widgets/branches", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode([]*github.Branch{{Name: github.String("trunk")}})
	})
	mux.HandleFunc("/repos/acme/widgets/git/blobs", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(blobCreateResponse{SHA: "blobsha0000000000000000000000000000000"})
	})
	mux.HandleFunc("/repos/acme/widgets/git/trees", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(github.Tree{SHA: github.String("cccccccccccccccccccccccccccccccccccccccc")})
	})
	mux.HandleFunc("/repos/acme/widgets/git/commits", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(github.Commit{SHA: github.String("dddddddddddddddddddddddddddddddddddddddd")})
	})
	mux.HandleFunc("/repos/acme/widgets/git/refs", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", req.Method)
		}
		refCreated = true
		_ = json.NewEncoder(w).Encode(github.Reference{Ref: github.String("refs/heads/main")})
	})

	s := newTestSyncer(t, mux, nil)
	if err := s.Push(context.Background(), r, "origin", "main"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if !refCreated {
		t.Fatalf("expected refs to be POSTed for a new branch")
	}
}

func TestCloneForgeDownloadsExtractsAndCommits(t *testing.T) {
	zipData := buildTestZip(t, "acme-widgets-deadbeef/", map[string]string{
		"a.txt":     "hello\n",
		"sub/b.txt": "world\n",
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(github.Repository{
			Name:          github.String("widgets"),
			DefaultBranch: github.String("main"),
		})
	})
	mux.HandleFunc("/repos/acme/widgets/branches", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode([]*github.Branch{{Name: github.String("main")}})
	})

	codeload := http.NewServeMux()
	codeload.HandleFunc("/acme/widgets/zip/refs/heads/main", func(w http.ResponseWriter, req *http.Request) {
		w.Write(zipData)
	})

	s := newTestSyncer(t, mux, codeload)
	target := filepath.Join(t.TempDir(), "clone")

	if err := s.CloneForge(context.Background(), "acme/widgets", target); err != nil {
		t.Fatalf("CloneForge: %v", err)
	}

	if _, err := os.Stat(filepath.Join(target, "a.txt")); err != nil {
		t.Fatalf("expected a.txt in clone: %v", err)
	}
	if _, err := os.Stat(filepath.Join(target, "sub", "b.txt")); err != nil {
		t.Fatalf("expected sub/b.txt in clone: %v", err)
	}

	local, err := repo.Open(target)
	if err != nil {
		t.Fatalf("repo.Open(target): %v", err)
	}
	entries, err := local.Log()
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one synthetic commit, got %d", len(entries))
	}
	if rem, ok := local.Config.Remote("origin"); !ok || rem.URL != "https://github.com/acme/widgets" {
		t.Fatalf("expected origin remote registered, got %+v ok=%v", rem, ok)
	}
}

func TestCloneForgeUnknownRepoFailsNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/ghost", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(github.ErrorResponse{Message: "Not Found"})
	})

	s := newTestSyncer(t, mux, nil)
	err := s.CloneForge(context.Background(), "acme/ghost", filepath.Join(t.TempDir(), "clone"))
	if !gyatterrs.Is(err, gyatterrs.NotFound) {
		t.Fatalf("CloneForge error = %v, want NotFound", err)
	}
}

// buildTestZip builds an in-memory zip mirroring a GitHub codeload
// zipball's shape: every entry wrapped under a single top-level directory.
func buildTestZip(t *testing.T, topLevelDir string, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(topLevelDir + name)
		if err != nil {
			t.Fatalf("zip.Create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip.Close: %v", err)
	}
	return buf.Bytes()
}
