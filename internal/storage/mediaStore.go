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

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultUploadDir = "./uploads"

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidName  = errors.New("invalid file name")
)

// StoredMedia describes a blob written by a MediaStore.
type StoredMedia struct {
	Name     string
	MIMEType string
	Size     int64
}

type MediaStore interface {
	// Save writes r under a fresh unique name keeping the extension of originalName.
	Save(ctx context.Context, originalName string, r io.Reader) (*StoredMedia, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type fileStore struct {
	dir string
}

// NewFileStore returns a MediaStore rooted at dir, creating it when missing.
func NewFileStore(dir string) (MediaStore, error) {
	if dir == "" {
		dir = DefaultUploadDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) Save(ctx context.Context, originalName string, r io.Reader) (*StoredMedia, error) {
	name := primitive.NewObjectID().Hex() + filepath.Ext(filepath.Base(originalName))

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	// Sniff from the head of the stream while copying the whole of it.
	head := make([]byte, 3072)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		tmp.Close()
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	written, err := io.Copy(tmp, io.MultiReader(bytes.NewReader(head), contextReader{ctx: ctx, r: r}))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	committed = true

	media := &StoredMedia{
		Name:     name,
		MIMEType: mimetype.Detect(head).String(),
		Size:     written,
	}
	log.Debug().Str("name", media.Name).Str("mime", media.MIMEType).Int64("size", media.Size).Msg("Media stored")
	return media, nil
}

func (s *fileStore) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(s.dir, name), nil
}

func (s *fileStore) Open(name string) (*os.File, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, ErrFileNotFound
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, ErrFileNotFound
	}
	return f, nil
}

func (s *fileStore) Delete(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
