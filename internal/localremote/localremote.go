// Package localremote implements cloning another on-disk repository by
// recursively copying its files, or — when the source names a forge
// instead — delegating to Forge Sync's downloader. There is no
// third-party dependency here; a plain recursive file copy is exactly
// what the engine's own filesystem-facing code (objstore, refs, config)
// already does with os/io, so this component stays on the standard
// library deliberately rather than for lack of trying (see DESIGN.md).
package localremote

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/gyattvc/gyatt/internal/config"
	"github.com/gyattvc/gyatt/internal/forge"
	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/repo"
)

// Clone copies source into target. If source looks like a forge reference
// (an http(s) URL, or github.com host), the call is delegated to
// forgeSyncer.CloneForge; otherwise source is treated as another on-disk
// gyatt repository and copied file-for-file.
func Clone(ctx context.Context, forgeSyncer *forge.Syncer, source, target string) error {
	if config.DetectProtocol(source) == config.ProtocolHTTPS {
		return forgeSyncer.CloneForge(ctx, source, target)
	}
	return cloneLocal(source, target)
}

// cloneLocal implements the local-to-local copy path: validate the source
// has a metadata directory, require the target be empty or absent,
// recursively copy every regular file, then register source as the
// `origin` remote.
func cloneLocal(source, target string) error {
	srcGitDir := filepath.Join(source, repo.MetadataDirName)
	if info, err := os.Stat(srcGitDir); err != nil || !info.IsDir() {
		return gyatterrs.New(gyatterrs.NotARepository, "localremote.Clone: source has no metadata directory")
	}

	if err := requireEmptyOrAbsent(target); err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "localremote.Clone", err)
	}
	if err := copyTree(source, target); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "localremote.Clone: copy", err)
	}

	cloned, err := repo.Open(target)
	if err != nil {
		return err
	}
	absSource, err := filepath.Abs(source)
	if err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "localremote.Clone", err)
	}
	if err := cloned.Config.AddRemote("origin", absSource); err != nil {
		return err
	}
	return cloned.Config.Save()
}

func requireEmptyOrAbsent(target string) error {
	entries, err := os.ReadDir(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return gyatterrs.Wrap(gyatterrs.IoError, "localremote.Clone", err)
	}
	if len(entries) > 0 {
		return gyatterrs.New(gyatterrs.AlreadyExists, "localremote.Clone: target directory is not empty")
	}
	return nil
}

// copyTree recursively copies every regular file from src to dst,
// preserving relative structure and each file's mode bits, and following
// the same directory-creation convention objstore and index use
// (MkdirAll(..., 0o755)).
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src) //nolint:gosec // G304: path produced by WalkDir over a validated source tree
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
