package index

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
	"github.com/gyattvc/gyatt/internal/objhash"
	"github.com/gyattvc/gyatt/internal/objstore"
)

// AddFile reads relPath (relative to workDir), writes it to store as a
// blob, and upserts a staging entry recording its current stat metadata.
// relPath must not escape workDir.
func (idx *Index) AddFile(store *objstore.Store, workDir, relPath string) error {
	cleanRel := filepath.ToSlash(filepath.Clean(relPath))
	if cleanRel == ".." || strings.HasPrefix(cleanRel, "../") || filepath.IsAbs(cleanRel) {
		return gyatterrs.New(gyatterrs.PathOutsideRepo, "index.AddFile")
	}

	fullPath := filepath.Join(workDir, filepath.FromSlash(cleanRel))
	info, err := os.Stat(fullPath)
	if err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "index.AddFile", err)
	}

	mode := uint32(objstore.ModeFile)
	if info.Mode()&0o100 != 0 {
		mode = objstore.ModeExecutable
	}

	hash, err := objhash.SumFile(fullPath, info.Size())
	if err != nil {
		return err
	}

	data, err := os.ReadFile(fullPath) //nolint:gosec // G304: fullPath was validated above to stay within workDir
	if err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "index.AddFile", err)
	}
	if _, err := store.PutBlob(objstore.Blob{Data: data}); err != nil {
		return err
	}

	idx.Upsert(Entry{
		Path:  cleanRel,
		Hash:  hash,
		Mode:  mode,
		Size:  uint64(info.Size()),
		Mtime: uint64(info.ModTime().Unix()),
	})
	return nil
}
