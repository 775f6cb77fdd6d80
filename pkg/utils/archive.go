package utils

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotArchive marks a payload whose bytes do not form a readable zip
// archive. Callers decide how to fall back.
var ErrNotArchive = errors.New("payload is not a zip archive")

// ExtractArchive unpacks a zip payload into destDir, flattening member paths
// to their base names. Nothing is written when the payload is not a zip;
// ErrNotArchive is returned instead.
func ExtractArchive(payload []byte, destDir string) ([]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, ErrNotArchive
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", destDir, err)
	}

	var extracted []string
	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}

		target := filepath.Join(destDir, filepath.Base(member.Name))
		if err := extractMember(member, target); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", member.Name, err)
		}
		extracted = append(extracted, target)
	}

	return extracted, nil
}

func extractMember(member *zip.File, target string) error {
	src, err := member.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// CreateArchive zips the given paths into outputPath and returns the
// compressed size in bytes.
func CreateArchive(paths []string, outputPath string) (int64, error) {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer outFile.Close()

	zipWriter := zip.NewWriter(outFile)

	for _, path := range paths {
		if err := addToArchive(zipWriter, path); err != nil {
			return 0, fmt.Errorf("failed to add %s to archive: %w", path, err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}

	fileInfo, err := outFile.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to get archive info: %w", err)
	}
	return fileInfo.Size(), nil
}

func addToArchive(zipWriter *zip.Writer, sourcePath string) error {
	return filepath.Walk(sourcePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}

		if sourcePath == path {
			header.Name = filepath.Base(path)
		} else {
			relPath, err := filepath.Rel(filepath.Dir(sourcePath), path)
			if err != nil {
				return err
			}
			header.Name = relPath
		}
		header.Name = filepath.ToSlash(header.Name)
		header.Method = zip.Deflate

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return err
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(writer, file)
		return err
	})
}

func GenerateArchiveName(paths []string, extension string) string {
	if len(paths) == 1 {
		baseName := filepath.Base(paths[0])
		if ext := filepath.Ext(baseName); ext != "" {
			baseName = strings.TrimSuffix(baseName, ext)
		}
		return fmt.Sprintf("%s_%s%s", baseName, time.Now().Format("20060102_150405"), extension)
	}

	return fmt.Sprintf("archive_%s%s", time.Now().Format("20060102_150405"), extension)
}

func ValidatePaths(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("path does not exist: %s", path)
			}
			return fmt.Errorf("cannot access path %s: %w", path, err)
		}
	}
	return nil
}

func CleanupTempFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to cleanup temporary file %s: %w", path, err)
	}
	return nil
}
