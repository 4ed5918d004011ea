package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kindredhq/intake/pkg/logging"
)

// File is a user-selected file as declared by the client.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// StagerConfig configures staging behavior.
type StagerConfig struct {
	// Accept lists the exact MIME types allowed.
	Accept []string

	// MaxFileSize is the maximum file size in bytes.
	MaxFileSize int64

	// PreviewPrefix is prepended to the reference ID to form its URL.
	PreviewPrefix string
}

// DefaultStagerConfig returns the JPG/PNG, 5MB configuration.
func DefaultStagerConfig() *StagerConfig {
	return &StagerConfig{
		Accept:        []string{MIMEJPEG, MIMEPNG},
		MaxFileSize:   MaxFileSize,
		PreviewPrefix: "/preview/",
	}
}

// Upload asks a component to stage File into Slot.
type Upload struct {
	Slot Slot
	File File
}

// Result is the outcome of an asynchronous staging operation.
type Result struct {
	Slot      Slot
	Reference Reference
	Err       error
}

// OK reports whether staging succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Stager validates and decodes images locally and registers them in a
// preview cache.
type Stager struct {
	config *StagerConfig
	cache  *PreviewCache
	now    func() time.Time
	logger logging.Logger
}

// StagerOption configures a stager.
type StagerOption func(*Stager)

// WithLogger sets the stager logger.
func WithLogger(logger logging.Logger) StagerOption {
	return func(s *Stager) {
		s.logger = logger
	}
}

// WithClock overrides the staging timestamp source.
func WithClock(now func() time.Time) StagerOption {
	return func(s *Stager) {
		s.now = now
	}
}

// NewStager creates a stager backed by cache.
func NewStager(config *StagerConfig, cache *PreviewCache, opts ...StagerOption) *Stager {
	if config == nil {
		config = DefaultStagerConfig()
	}
	s := &Stager{
		config: config,
		cache:  cache,
		now:    time.Now,
		logger: logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the preview cache the stager writes to.
func (s *Stager) Cache() *PreviewCache {
	return s.cache
}

// Validate applies the type and size rules to the declared file metadata.
func (s *Stager) Validate(f File) error {
	if !s.isAllowedType(f.ContentType) {
		return fmt.Errorf("%w: %q", ErrInvalidFileType, f.ContentType)
	}
	if f.Size > s.config.MaxFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, f.Size)
	}
	return nil
}

// Stage validates f, decodes its header to confirm it is an image of the
// declared type and stores the bytes for preview.
func (s *Stager) Stage(ctx context.Context, f File) (Reference, error) {
	if err := ctx.Err(); err != nil {
		return Reference{}, err
	}
	if err := s.Validate(f); err != nil {
		s.logger.Debug("image rejected", logging.String("file", f.Name), logging.Err(err))
		return Reference{}, err
	}
	if f.Content == nil {
		return Reference{}, fmt.Errorf("%w: no content", ErrUnreadableImage)
	}

	// The declared size may be wrong; the limit is enforced on what is read.
	data, err := io.ReadAll(io.LimitReader(f.Content, s.config.MaxFileSize+1))
	if err != nil {
		return Reference{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > s.config.MaxFileSize {
		return Reference{}, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, s.config.MaxFileSize)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	if mimeForFormat(format) != f.ContentType {
		return Reference{}, fmt.Errorf("%w: declared %q, content is %s", ErrInvalidFileType, f.ContentType, format)
	}
	if err := ctx.Err(); err != nil {
		return Reference{}, err
	}

	id := uuid.NewString()
	ref := Reference{
		ID:          id,
		URL:         s.config.PreviewPrefix + id,
		FileName:    sanitizeFilename(f.Name),
		ContentType: f.ContentType,
		Size:        int64(len(data)),
		Width:       cfg.Width,
		Height:      cfg.Height,
		StagedAt:    s.now(),
	}
	if s.cache != nil {
		s.cache.Put(ref, data)
	}

	s.logger.Debug("image staged",
		logging.String("ref", ref.ID),
		logging.String("content_type", ref.ContentType),
		logging.Int64("size", ref.Size),
	)
	return ref, nil
}

// StageAsync stages f in the background and delivers exactly one Result on
// the returned channel, which is then closed.
func (s *Stager) StageAsync(ctx context.Context, slot Slot, f File) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		ref, err := s.Stage(ctx, f)
		out <- Result{Slot: slot, Reference: ref, Err: err}
	}()
	return out
}

// Release drops the preview bytes for ref.
func (s *Stager) Release(ref Reference) {
	if s.cache != nil {
		s.cache.Release(ref.ID)
	}
}

func (s *Stager) isAllowedType(contentType string) bool {
	for _, allowed := range s.config.Accept {
		if allowed == contentType {
			return true
		}
	}
	return false
}

func mimeForFormat(format string) string {
	switch format {
	case "jpeg":
		return MIMEJPEG
	case "png":
		return MIMEPNG
	default:
		return "image/" + format
	}
}

func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	filename = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '\x00' {
			return '_'
		}
		return r
	}, filename)

	if len(filename) > 255 {
		ext := filepath.Ext(filename)
		filename = filename[:255-len(ext)] + ext
	}
	return filename
}
