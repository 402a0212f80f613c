package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/quarrylabs/quarry/pkg/core"
)

const partSuffix = ".part"

// scan lists the landing directory. Subdirectories, dotfiles, and .part
// files from unfinished transfers are ignored. ReadDir returns entries
// sorted by filename, so the batch order is stable.
func scan(_ context.Context, b *Batch) error {
	entries, err := os.ReadDir(b.Settings.LandingDir)
	if err != nil {
		return fmt.Errorf("read landing directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, partSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", name, err)
		}
		b.Files = append(b.Files, &File{
			Name: name,
			Path: filepath.Join(b.Settings.LandingDir, name),
			Size: info.Size(),
		})
	}
	return nil
}

// match filters the batch against the configured glob. Non-matching files
// are dropped without being recorded.
func match(_ context.Context, b *Batch) error {
	pattern := b.Settings.Glob
	if pattern == "" {
		return nil
	}
	matched := b.Files[:0]
	for _, f := range b.Files {
		ok, err := path.Match(pattern, f.Name)
		if err != nil {
			return fmt.Errorf("glob %q: %w", pattern, err)
		}
		if ok {
			matched = append(matched, f)
		}
	}
	b.Files = matched
	return nil
}

// resolve loads the manifest and attaches each file's declaration. Files
// the manifest does not list are failed. When no manifest is configured the
// stage is a no-op and verify has nothing to enforce against.
func resolve(_ context.Context, b *Batch) error {
	if b.Settings.ManifestPath == "" {
		return nil
	}
	manifest, err := LoadManifest(b.Settings.ManifestPath)
	if err != nil {
		return err
	}
	b.Manifest = manifest
	for _, f := range b.Files {
		entry := manifest.Entry(f.Name)
		if entry == nil {
			f.fail("not in manifest")
			continue
		}
		f.Entry = entry
	}
	return nil
}

// verify computes each file's SHA-256 and enforces the manifest's size and
// checksum declarations when the settings ask for it. The checksum is
// computed even without enforcement: it is recorded in the state store and
// drives duplicate detection in commit.
func verify(ctx context.Context, b *Batch) error {
	for _, f := range b.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !f.pending() {
			continue
		}
		if b.Settings.EnforceSize && f.Entry != nil && f.Entry.Size > 0 && f.Size != f.Entry.Size {
			f.fail(fmt.Sprintf("size mismatch manifest=%d actual=%d", f.Entry.Size, f.Size))
			continue
		}
		sum, err := FileSHA256(f.Path)
		if err != nil {
			f.fail(fmt.Sprintf("checksum: %v", err))
			continue
		}
		f.Checksum = sum
		if b.Settings.EnforceChecksum && f.Entry != nil && f.Entry.SHA256 != "" && sum != f.Entry.SHA256 {
			f.fail(fmt.Sprintf("checksum mismatch manifest=%s actual=%s", f.Entry.SHA256, sum))
		}
	}
	return nil
}

// commit promotes verified files into the inbox. Each file is copied to a
// .part sibling and renamed over the destination, so a reader of the inbox
// never observes a half-written file. A landing file whose checksum matches
// the inbox copy is a duplicate delivery: it is skipped and the landing
// copy removed. A differing inbox copy is overwritten, the redelivery wins.
func commit(ctx context.Context, b *Batch) error {
	if err := os.MkdirAll(b.Settings.InboxDir, 0o755); err != nil {
		return fmt.Errorf("create inbox directory: %w", err)
	}
	for _, f := range b.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !f.pending() {
			continue
		}
		dest := filepath.Join(b.Settings.InboxDir, f.Name)
		existing, err := FileSHA256(dest)
		switch {
		case err == nil && existing == f.Checksum:
			if err := os.Remove(f.Path); err != nil {
				f.fail(fmt.Sprintf("remove duplicate: %v", err))
				continue
			}
			f.Status = core.FileStatusSkipped
			f.Reason = "duplicate of inbox copy"
			continue
		case err != nil && !os.IsNotExist(err):
			f.fail(fmt.Sprintf("read inbox copy: %v", err))
			continue
		}
		if err := promote(f.Path, dest); err != nil {
			f.fail(err.Error())
			continue
		}
		f.Status = core.FileStatusIngested
	}
	return nil
}

// previewCommit applies commit's duplicate detection without promoting or
// removing anything. Files whose checksum matches the inbox copy are marked
// skipped; the rest stay pending.
func previewCommit(b *Batch) {
	for _, f := range b.Files {
		if !f.pending() {
			continue
		}
		dest := filepath.Join(b.Settings.InboxDir, f.Name)
		existing, err := FileSHA256(dest)
		if err == nil && existing == f.Checksum {
			f.Status = core.FileStatusSkipped
			f.Reason = "duplicate of inbox copy"
		}
	}
}

// promote moves src over dest via a .part copy and a rename. The two-step
// move also works when landing and inbox sit on different filesystems,
// where a direct rename would fail.
func promote(src, dest string) error {
	part := dest + partSuffix
	if err := copyFile(src, part); err != nil {
		_ = os.Remove(part)
		return err
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("rename: %v", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove landing copy: %v", err)
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src) //nolint:gosec // G304: paths come from the scanned landing directory
	if err != nil {
		return fmt.Errorf("open: %v", err)
	}
	defer func() { _ = in.Close() }()
	out, err := os.Create(dest) //nolint:gosec // G304: dest is derived from the configured inbox directory
	if err != nil {
		return fmt.Errorf("create: %v", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: %v", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close: %v", err)
	}
	return nil
}
