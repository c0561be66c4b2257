// Package upload implements the temporary store for inbound attachments.
//
// Every Store call creates exactly one file under the configured directory;
// the returned Handle must be released on every exit path, typically with
// defer immediately after a successful Store.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/afero"
)

// ErrEmptyAttachment is returned when the attachment has no content.
var ErrEmptyAttachment = errors.New("attachment is empty")

// ErrAttachmentTooLarge is returned when the attachment exceeds the size limit.
var ErrAttachmentTooLarge = errors.New("attachment too large")

// maxExtLen caps the extension copied from client-supplied names.
const maxExtLen = 8

// Store persists attachments to a transient location.
type Store struct {
	fs      afero.Fs
	dir     string
	maxSize int64

	// OnCreate and OnRelease observe the file lifecycle. Both may be nil.
	OnCreate  func()
	OnRelease func(err error)
}

// NewStore creates a Store writing into dir on fs. maxSize <= 0 disables the
// size check.
func NewStore(fs afero.Fs, dir string, maxSize int64) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{fs: fs, dir: dir, maxSize: maxSize}, nil
}

// NewOSStore creates a Store on the real filesystem.
func NewOSStore(dir string, maxSize int64) (*Store, error) {
	return NewStore(afero.NewOsFs(), dir, maxSize)
}

// Store copies r into a new temporary file. The file name is a fresh ULID
// plus the (sanitized) extension of suggestedName, so client input never
// controls the path. On error nothing is left behind.
func (s *Store) Store(r io.Reader, suggestedName string) (*Handle, error) {
	name := ulid.Make().String() + safeExt(suggestedName)
	path := filepath.Join(s.dir, name)

	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	h := &Handle{fs: s.fs, path: path, originalName: suggestedName, onRelease: s.OnRelease}
	if s.OnCreate != nil {
		s.OnCreate()
	}

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}

	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("write temp file: %w", copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close temp file: %w", closeErr)
	case n == 0:
		err = ErrEmptyAttachment
	case s.maxSize > 0 && n > s.maxSize:
		err = fmt.Errorf("%w: limit is %d bytes", ErrAttachmentTooLarge, s.maxSize)
	}

	if err != nil {
		_ = h.Release()
		return nil, err
	}

	h.size = n
	return h, nil
}

// Handle refers to one stored attachment. Release is idempotent and safe on
// a nil Handle.
type Handle struct {
	fs           afero.Fs
	path         string
	originalName string
	size         int64
	onRelease    func(err error)

	once       sync.Once
	releaseErr error
}

// Name returns the stored file name (ULID plus extension).
func (h *Handle) Name() string {
	return filepath.Base(h.path)
}

// OriginalName returns the client-supplied file name.
func (h *Handle) OriginalName() string {
	return h.originalName
}

// Path returns the location on the store's filesystem.
func (h *Handle) Path() string {
	return h.path
}

// Size returns the number of bytes stored.
func (h *Handle) Size() int64 {
	return h.size
}

// Open returns a reader over the stored content.
func (h *Handle) Open() (io.ReadCloser, error) {
	return h.fs.Open(h.path)
}

// Release removes the stored file. A file that is already gone is not an error.
func (h *Handle) Release() error {
	if h == nil {
		return nil
	}

	h.once.Do(func() {
		err := h.fs.Remove(h.path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			h.releaseErr = fmt.Errorf("remove temp file: %w", err)
		}
		if h.onRelease != nil {
			h.onRelease(h.releaseErr)
		}
	})

	return h.releaseErr
}

// safeExt keeps a short alphanumeric extension from name, lower-cased.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
