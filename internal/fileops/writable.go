package fileops

import (
	"fmt"
	"os"
	"strings"
)

// CheckWritable verifies dir exists and a file can be created in it.
func CheckWritable(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("directory is empty")
	}
	info, err := statFile(dir)
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	tmp, err := os.CreateTemp(dir, ".soundgrab-write-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := tmp.Name()
	_ = tmp.Close()
	_ = removeFile(name)
	return nil
}
