package batch

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"microfigure/internal/models"
)

// FindFiles lists the files in dir (not recursive) whose extension matches
// ext, case-insensitively, sorted by name
func FindFiles(dir, ext string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, models.Configurationf("input folder %s: %v", dir, err)
	}
	if !info.IsDir() {
		return nil, models.Configurationf("input %s is not a folder", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, models.Configurationf("failed to read input folder %s: %v", dir, err)
	}

	want := "." + strings.ToLower(strings.TrimPrefix(ext, "."))
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(e.Name())) == want {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, models.Configurationf("no *%s files found in %s", want, dir)
	}
	return files, nil
}
