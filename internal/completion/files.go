package completion

import (
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// fileNames completes the path typed so far. Directories are returned
// with a trailing slash.
func (e *Engine) fileNames(typed string) []string {
	fsys := e.files
	rel := typed
	if fsys == nil {
		if strings.HasPrefix(typed, "/") {
			fsys = os.DirFS("/")
			rel = strings.TrimPrefix(typed, "/")
		} else {
			fsys = os.DirFS(".")
		}
	}

	dir, base := path.Split(rel)
	pattern := escapeMeta(dir) + escapeMeta(base) + "*"
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil
	}

	prefix := typed[:len(typed)-len(rel)]
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		// Hidden files only when asked for.
		if strings.HasPrefix(path.Base(m), ".") && !strings.HasPrefix(base, ".") {
			continue
		}
		name := prefix + m
		if info, err := fs.Stat(fsys, m); err == nil && info.IsDir() {
			name += "/"
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// escapeMeta quotes the glob metacharacters in s.
func escapeMeta(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[]{}\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
