package builtin

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Attribute names shared by the file operation task types.
const (
	attrSource      = "source"
	attrDestination = "destination"
)

// framePattern matches a printf style integer verb such as %04d or %d.
var framePattern = regexp.MustCompile(`%0?\d*d`)

// expandFramePattern substitutes frame into the %04d style pattern in
// path. Paths without a pattern pass through unchanged, so the same task
// type handles single files and frame sequences.
func expandFramePattern(path string, frame int) string {
	if !framePattern.MatchString(path) {
		return path
	}
	return fmt.Sprintf(path, frame)
}

// resolveDestination returns the concrete destination file path. A
// destination naming a directory, by trailing separator or by existing on
// disk, receives the source's base name.
func resolveDestination(src, dst string) string {
	if strings.HasSuffix(dst, "/") || strings.HasSuffix(dst, string(os.PathSeparator)) {
		return filepath.Join(dst, filepath.Base(src))
	}
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		return filepath.Join(dst, filepath.Base(src))
	}
	return dst
}

// copyFile copies src to dst, creating missing destination directories
// and carrying the source permission bits over.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
