package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gyattvc/gyatt/internal/forge"
	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/httpclient"
	"github.com/gyattvc/gyatt/internal/p2p"
	"github.com/gyattvc/gyatt/internal/progress"
	"github.com/gyattvc/gyatt/internal/repo"
)

// defaultIPFSAPIURL is the local daemon's HTTP API address, overridable
// through GYATT_IPFS_API.
const defaultIPFSAPIURL = "http://127.0.0.1:5001"

// runPush implements the `push <remote> [branch]` CLI verb. A remote whose
// URL is an ipfs:// reference is synced object-by-object to the local
// content-addressed daemon; anything else goes through the forge's Git
// Data API push path.
func runPush(r *repo.Repository, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: gyatt push <remote> [branch]")
		return 2
	}
	remoteName := args[0]

	branch := ""
	if len(args) > 1 {
		branch = args[1]
	} else {
		current, err := r.CurrentBranch()
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			return 1
		}
		branch = current
	}

	client := httpclient.New(httpclient.DefaultConfig(), nil)

	if rem, ok := r.Config.Remote(remoteName); ok && strings.HasPrefix(rem.URL, "ipfs://") {
		return runPushIPFS(r, client, remoteName)
	}

	syncer := forge.New(client, r.GitDir())

	sp := progress.Start(fmt.Sprintf("Pushing %s to %s...", branch, remoteName))
	if err := syncer.Push(context.Background(), r, remoteName, branch); err != nil {
		sp.Fail(fmt.Sprintf("push failed: %v", err))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	sp.Success(fmt.Sprintf("Pushed %s to %s", branch, remoteName))
	return 0
}

// runPushIPFS streams every local object to the content-addressed network,
// then publishes a branch manifest and prints its CID.
func runPushIPFS(r *repo.Repository, client *httpclient.Client, remoteName string) int {
	apiURL := os.Getenv("GYATT_IPFS_API")
	if apiURL == "" {
		apiURL = defaultIPFSAPIURL
	}
	store := p2p.Open(r.GitDir(), r.Objects, client, apiURL)
	ctx := context.Background()

	if !store.Online(ctx) {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", gyatterrs.New(gyatterrs.IpfsOffline, "push"))
		return 1
	}

	sp := progress.Start(fmt.Sprintf("Pushing objects to %s...", remoteName))
	if err := store.PushAll(ctx); err != nil {
		sp.Fail(fmt.Sprintf("push failed: %v", err))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}

	branches, err := r.ListBranches()
	if err != nil {
		sp.Fail(fmt.Sprintf("push failed: %v", err))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	manifest := make(map[string]p2p.ManifestBranch, len(branches))
	for _, name := range branches {
		head, ok, refErr := r.Refs.ReadRef(name)
		if refErr != nil || !ok {
			continue
		}
		c, mapped, cidErr := store.CID(head)
		if cidErr != nil || !mapped {
			continue
		}
		manifest[name] = p2p.ManifestBranch{Name: name, CommitHash: head.String(), CID: c.String()}
	}

	manifestCID, err := store.PublishManifest(ctx, manifest, "1")
	if err != nil {
		sp.Fail(fmt.Sprintf("manifest publish failed: %v", err))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		return 1
	}
	sp.Success(fmt.Sprintf("Pushed to %s", remoteName))
	fmt.Printf("manifest: %s\n", manifestCID)
	return 0
}
