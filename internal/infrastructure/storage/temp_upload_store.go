package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"textile-vision/internal/domain/port"
)

// TempUploadStore складывает загрузки во временный каталог.
// Файлы живут только на время обработки запроса.
type TempUploadStore struct {
	dir string
}

// NewTempUploadStore создаёт каталог для загрузок. Пустой dir: системный temp.
func NewTempUploadStore(dir string) (*TempUploadStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "textile-uploads")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &TempUploadStore{dir: dir}, nil
}

// Dir каталог загрузок
func (s *TempUploadStore) Dir() string {
	return s.dir
}

// Save записывает поток в файл с уникальным именем и возвращает путь
func (s *TempUploadStore) Save(name string, r io.Reader) (string, error) {
	path := filepath.Join(s.dir, uuid.NewString()+"_"+sanitizeName(name))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload file: %w", err)
	}
	return path, nil
}

// Remove удаляет файл. Удалять можно только файлы внутри каталога загрузок.
func (s *TempUploadStore) Remove(path string) error {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("path %q is outside upload dir", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload file: %w", err)
	}
	return nil
}

// sanitizeName оставляет только базовое имя без разделителей и пробелов
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

var _ port.UploadStore = (*TempUploadStore)(nil)
