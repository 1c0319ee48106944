package installer

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Error variables for unpacking errors.
var (
	ErrExtractionFailed = fmt.Errorf("extraction failed")
	ErrBundleNotFound   = fmt.Errorf("no application bundle found")
)

const executableMode = 0o755

// extractTarball unpacks a .tar.gz archive into destDir. Entries that would
// escape destDir are rejected.
func extractTarball(r io.Reader, destDir string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	root := filepath.Clean(destDir)
	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		cleanName := filepath.Clean(filepath.FromSlash(header.Name))
		if cleanName == "." {
			continue
		}
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return fmt.Errorf("invalid path in archive: %s", header.Name)
		}
		target := filepath.Join(root, cleanName)
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("path traversal detected: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			//nolint:gosec // G301: bundle directories need standard permissions
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create dir %s: %w", cleanName, err)
			}

		case tar.TypeReg:
			//nolint:gosec // G301: bundle directories need standard permissions
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", cleanName, err)
			}
			//nolint:gosec // G304: target is confined to destDir above
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode)&os.ModePerm)
			if err != nil {
				return fmt.Errorf("create file %s: %w", cleanName, err)
			}
			//nolint:gosec // G110: installer archives come from the download service
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return fmt.Errorf("extract file %s: %w", cleanName, err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("close file %s: %w", cleanName, err)
			}

		case tar.TypeSymlink:
			if filepath.IsAbs(header.Linkname) {
				return fmt.Errorf("absolute symlink not allowed: %s -> %s", cleanName, header.Linkname)
			}
			resolved := filepath.Join(filepath.Dir(target), header.Linkname)
			if resolved != root && !strings.HasPrefix(resolved, root+string(os.PathSeparator)) {
				return fmt.Errorf("symlink escapes archive: %s -> %s", cleanName, header.Linkname)
			}
			//nolint:gosec // G301: bundle directories need standard permissions
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("create parent dir for %s: %w", cleanName, err)
			}
			_ = os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("create symlink %s: %w", cleanName, err)
			}

		default:
			// Skip other types (devices, hard links, etc.)
			continue
		}
	}
}

// extractTarballFile unpacks the archive at path into destDir.
func extractTarballFile(path, destDir string) error {
	//nolint:gosec // G304: path is the downloaded installer
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()
	return extractTarball(f, destDir)
}

// gunzipSibling decompresses path next to itself and returns the new path.
// The ".gz" suffix is dropped; if that leaves no name, ".bin" is appended
// to the original name instead.
func gunzipSibling(path string) (string, error) {
	dest := gunzipTarget(path)

	//nolint:gosec // G304: path is the downloaded installer
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = in.Close() }()

	gzr, err := gzip.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("create gzip reader: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	//nolint:gosec // G304: destination is a sibling of the downloaded installer
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	//nolint:gosec // G110: installer payloads come from the download service
	if _, err := io.Copy(out, gzr); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("decompress %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dest, err)
	}
	return dest, nil
}

func gunzipTarget(path string) string {
	dir, name := filepath.Split(path)
	stripped := name
	if strings.HasSuffix(strings.ToLower(name), ".gz") {
		stripped = name[:len(name)-len(".gz")]
	}
	if stripped == "" || stripped == name {
		stripped = name + ".bin"
	}
	return filepath.Join(dir, stripped)
}

// findAppBundle returns the first directory under root whose name ends in
// ".app", in lexical walk order.
func findAppBundle(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root && strings.HasSuffix(strings.ToLower(d.Name()), ".app") {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}
	if found == "" {
		return "", ErrBundleNotFound
	}
	return found, nil
}

// listContents returns paths under root relative to it, for diagnostics.
func listContents(root string, limit int) []string {
	var entries []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			rel += string(os.PathSeparator)
		}
		entries = append(entries, rel)
		if len(entries) >= limit {
			return filepath.SkipAll
		}
		return nil
	})
	sort.Strings(entries)
	return entries
}

// isExecutable reports whether any execute bit is set on path.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
