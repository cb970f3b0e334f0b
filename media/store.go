package media

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrAssetNotFound = errors.New("asset not found")

// Store saves, opens and deletes media assets by their relative path.
type Store interface {
	// Save writes data under the asset type's directory and returns the
	// relative path. An empty filename gets a random one with ext.
	Save(assetType AssetType, filename, ext string, data io.Reader) (string, error)
	Open(relativePath string) (io.ReadCloser, os.FileInfo, error)
	Delete(relativePath string) error
	GetFullPath(relativePath string) (string, error)
	EnsureDir(assetType AssetType) (string, error)
}

// LocalStorage keeps assets on the local filesystem below basePath.
type LocalStorage struct {
	basePath string               // absolute path to MEDIA_STORAGE_PATH
	dirs     map[AssetType]string // asset type -> absolute directory
}

// NewLocalStorage resolves each subdirectory below basePath and creates it.
func NewLocalStorage(basePath string, subDirs map[AssetType]string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}
	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	ls := &LocalStorage{basePath: absBasePath, dirs: make(map[AssetType]string)}
	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !ls.within(fullPath) || filepath.Clean(fullPath) == absBasePath {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		ls.dirs[assetType] = fullPath
		if _, err := ls.EnsureDir(assetType); err != nil {
			return nil, err
		}
	}

	log.Printf("media.store: Initialized LocalStorage at %s", absBasePath)
	return ls, nil
}

func (ls *LocalStorage) within(p string) bool {
	clean := filepath.Clean(p)
	return clean == ls.basePath || strings.HasPrefix(clean, ls.basePath+string(filepath.Separator))
}

func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dirPath, ok := ls.dirs[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

func (ls *LocalStorage) Save(assetType AssetType, filename, ext string, data io.Reader) (string, error) {
	dir, err := ls.EnsureDir(assetType)
	if err != nil {
		return "", err
	}

	if filename == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return "", fmt.Errorf("failed to generate asset filename: %w", err)
		}
		filename = id.String() + ext
	}
	if filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid asset filename '%s'", filename)
	}

	fullSavePath := filepath.Join(dir, filename)
	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to close '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}
	return filepath.ToSlash(relativePath), nil
}

func (ls *LocalStorage) Open(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: '%s'", ErrAssetNotFound, relativePath)
		}
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, nil, fmt.Errorf("%w: '%s'", ErrAssetNotFound, relativePath)
	}
	return file, info, nil
}

// Delete removes an asset; a missing file is not an error.
func (ls *LocalStorage) Delete(relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}
	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	return nil
}

// GetFullPath maps a relative asset path to an absolute one, refusing
// anything that escapes the base path.
func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	if relativePath == "" {
		return "", fmt.Errorf("invalid path: empty asset path")
	}
	fullPath := filepath.Join(ls.basePath, filepath.Clean(filepath.FromSlash(relativePath)))
	if !ls.within(fullPath) || fullPath == ls.basePath {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}
	return fullPath, nil
}
