package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SplitExt splits path into everything before the final extension of its
// file name and the extension itself (including the dot). A leading dot
// alone does not count as an extension, so ".env" has none.
func SplitExt(path string) (base, ext string) {
	name := filepath.Base(path)
	ext = filepath.Ext(name)
	if ext == name {
		return path, ""
	}
	return strings.TrimSuffix(path, ext), ext
}

// TrimExt returns path without the extension of its file name.
func TrimExt(path string) string {
	base, _ := SplitExt(path)
	return base
}

// Unique returns the first path among base.ext, base_1.ext, base_2.ext, ...
// that does not exist right now. The name is not reserved; another process
// may claim it before the caller creates it.
func Unique(path string) string {
	base, ext := SplitExt(path)

	candidate := path
	for i := 1; exists(candidate); i++ {
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	return candidate
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
