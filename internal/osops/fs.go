// Package osops is the filesystem collaborator: directory copies for
// canvas working trees, existence probes, and cleanup.
package osops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// PathExists reports whether the path resolves to anything.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DeletePath removes a file or directory tree. Missing paths are fine.
func DeletePath(path string) error {
	return os.RemoveAll(path)
}

// CopyDirectory recursively copies src into dst, preserving file
// modes. dst must not already exist as a file; nested directories are
// created as needed. Symlinks are copied as links.
func CopyDirectory(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("copy source %s is not a directory", src)
	}
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
