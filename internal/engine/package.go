package engine

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jaa/soundgrab/internal/fileops"
)

const fallbackArchiveName = "playlist.zip"

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".m4a":  {},
	".flac": {},
	".wav":  {},
	".ogg":  {},
}

type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeEmpty   Outcome = "empty"
	OutcomeArchive Outcome = "archive"
	OutcomeSingle  Outcome = "single"
	OutcomeShared  Outcome = "shared"
)

type PackageOptions struct {
	Dir           string
	Token         string
	Collection    string
	Authenticated bool
}

type PackageResult struct {
	Outcome Outcome
	// Files holds slash-separated paths relative to Dir, sorted.
	Files []string
	// Reference is "<token>/<path>" for anonymous downloads.
	Reference   string
	ArchivePath string
}

func IsAudioFile(name string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// FindAudioFiles walks dir and returns the audio files below it as sorted,
// slash-separated relative paths.
func FindAudioFiles(dir string) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() || !IsAudioFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// Package decides what the client receives once a download succeeded:
// nothing, a single file reference, an archive of everything, or (for
// authenticated users) a plain completion.
func Package(opts PackageOptions) (PackageResult, error) {
	files, err := FindAudioFiles(opts.Dir)
	if err != nil {
		return PackageResult{}, err
	}

	result := PackageResult{Files: files}
	switch {
	case len(files) == 0:
		result.Outcome = OutcomeEmpty
	case opts.Authenticated:
		result.Outcome = OutcomeShared
	case len(files) == 1:
		result.Outcome = OutcomeSingle
		result.Reference = opts.Token + "/" + QuotePath(files[0])
	default:
		name := ArchiveName(opts.Collection)
		archivePath := filepath.Join(opts.Dir, name)
		if err := WriteArchive(archivePath, opts.Dir, files); err != nil {
			return PackageResult{}, err
		}
		result.Outcome = OutcomeArchive
		result.ArchivePath = archivePath
		result.Reference = opts.Token + "/" + QuotePath(name)
	}
	return result, nil
}

// ArchiveName derives the zip name from a collection name, falling back to
// playlist.zip. The result is always a single path element.
func ArchiveName(collection string) string {
	name := strings.TrimSpace(collection)
	name = strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(name)
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	name = strings.TrimLeft(name, ".")
	if strings.TrimSpace(name) == "" {
		return fallbackArchiveName
	}
	return name + ".zip"
}

// WriteArchive deflates files (relative to root) into a zip at target,
// keeping their relative paths as entry names.
func WriteArchive(target string, root string, files []string) error {
	err := fileops.WriteFileAtomic(target, func(w io.Writer) error {
		zw := zip.NewWriter(w)
		for _, rel := range files {
			if err := addArchiveEntry(zw, root, rel); err != nil {
				_ = zw.Close()
				return err
			}
		}
		return zw.Close()
	})
	if err != nil {
		return fmt.Errorf("write archive %s: %w", filepath.Base(target), err)
	}
	return nil
}

func addArchiveEntry(zw *zip.Writer, root string, rel string) error {
	path := filepath.Join(root, filepath.FromSlash(rel))
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = rel
	header.Method = zip.Deflate

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("add %s: %w", rel, err)
	}
	return nil
}
