package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"

	"github.com/ignatzorin/client-intake/internal/pkg/apperror"
)

// sniffLen сколько байт читается для определения типа файла.
const sniffLen = 512

// Разрешённые типы файлов кроме изображений и офисных документов.
var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"application/zip": true,
}

// Asset файл, загруженный в сессии формы.
type Asset struct {
	Name string `json:"name"`
	Path string `json:"-"`
	Size int64  `json:"size"`
	MIME string `json:"mime"`
}

// AssetStorage временное файловое хранилище материалов клиента.
// Файлы лежат в каталоге сессии и удаляются вместе с ней.
type AssetStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewAssetStorage создаёт файловое хранилище.
func NewAssetStorage(rootPath string, maxUploadMB int64) (*AssetStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &AssetStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// MaxUploadBytes лимит размера одного файла.
func (s *AssetStorage) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Save проверяет тип и размер файла и сохраняет его в каталог сессии.
func (s *AssetStorage) Save(ctx context.Context, sessionID, originalName string, r io.Reader) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("storage: ошибка чтения файла: %w", err)
	}
	head = head[:n]

	mime, ok := DetectAllowed(head)
	if !ok {
		return nil, apperror.ErrUnsupportedAsset
	}

	safeName := sanitizeFilename(originalName)
	fileName := fmt.Sprintf("%d_%s", time.Now().UnixNano(), safeName)

	sessionDir := filepath.Join(s.rootPath, sanitizeFilename(sessionID))
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог сессии: %w", err)
	}

	targetPath := filepath.Join(sessionDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limitedReader := io.LimitedReader{R: io.MultiReader(bytes.NewReader(head), r), N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limitedReader)
	if err != nil {
		_ = os.Remove(tempPath)
		return nil, fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return nil, apperror.ErrAssetTooLarge
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return nil, fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return &Asset{
		Name: safeName,
		Path: filepath.Join(sanitizeFilename(sessionID), fileName),
		Size: written,
		MIME: mime,
	}, nil
}

// DeleteSession удаляет все файлы сессии.
func (s *AssetStorage) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, sanitizeFilename(sessionID))
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("storage: не удалось удалить файлы сессии: %w", err)
	}
	return nil
}

// DetectAllowed определяет тип по сигнатуре и проверяет, что он разрешён.
func DetectAllowed(head []byte) (string, bool) {
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return "", false
	}
	mime := kind.MIME.Value
	if filetype.IsImage(head) || filetype.IsDocument(head) || allowedMimeTypes[mime] {
		return mime, true
	}
	return mime, false
}

// IsBinary сообщает, что содержимое распознаётся как бинарный формат.
func IsBinary(head []byte) bool {
	kind, err := filetype.Match(head)
	return err == nil && kind != filetype.Unknown
}

// sanitizeFilename удаляет потенциально опасные символы.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" || name == "." {
		name = "file"
	}
	return name
}
