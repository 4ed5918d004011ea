package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestStager(t *testing.T) *Stager {
	t.Helper()
	cache, err := NewPreviewCache(8)
	require.NoError(t, err)
	return NewStager(nil, cache, WithClock(func() time.Time {
		return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	}))
}

func TestStager_RejectsGIF(t *testing.T) {
	s := newTestStager(t)

	_, err := s.Stage(context.Background(), File{Name: "a.gif", ContentType: "image/gif", Size: 10})
	require.ErrorIs(t, err, ErrInvalidFileType)
	assert.Equal(t, "Only JPG/PNG files are allowed", Message(err))
	assert.Equal(t, 0, s.Cache().Len())
}

func TestStager_RejectsOversize(t *testing.T) {
	s := newTestStager(t)

	_, err := s.Stage(context.Background(), File{Name: "big.png", ContentType: MIMEPNG, Size: 5*1024*1024 + 1})
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Equal(t, "Image must be less than 5MB", Message(err))
	assert.Equal(t, 0, s.Cache().Len())
}

func TestStager_AcceptsExactLimit(t *testing.T) {
	s := newTestStager(t)
	err := s.Validate(File{ContentType: MIMEJPEG, Size: MaxFileSize})
	assert.NoError(t, err)
}

func TestStager_EnforcesLimitOnContent(t *testing.T) {
	cache, err := NewPreviewCache(2)
	require.NoError(t, err)
	s := NewStager(&StagerConfig{Accept: []string{MIMEPNG}, MaxFileSize: 16}, cache)

	data := pngBytes(t, 4, 4)
	_, err = s.Stage(context.Background(), File{Name: "lie.png", ContentType: MIMEPNG, Size: 1, Content: bytes.NewReader(data)})
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestStager_StagesPNG(t *testing.T) {
	s := newTestStager(t)
	data := pngBytes(t, 3, 2)

	ref, err := s.Stage(context.Background(), File{
		Name:        "../../me.png",
		ContentType: MIMEPNG,
		Size:        int64(len(data)),
		Content:     bytes.NewReader(data),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ref.ID)
	assert.Equal(t, "/preview/"+ref.ID, ref.URL)
	assert.Equal(t, "me.png", ref.FileName)
	assert.Equal(t, 3, ref.Width)
	assert.Equal(t, 2, ref.Height)
	assert.Equal(t, int64(len(data)), ref.Size)
	assert.False(t, ref.IsZero())

	got, ct, ok := s.Cache().Get(ref.ID)
	require.True(t, ok)
	assert.Equal(t, MIMEPNG, ct)
	assert.Equal(t, data, got)
}

func TestStager_RejectsMismatchedContent(t *testing.T) {
	s := newTestStager(t)
	data := pngBytes(t, 1, 1)

	_, err := s.Stage(context.Background(), File{Name: "x.jpg", ContentType: MIMEJPEG, Size: int64(len(data)), Content: bytes.NewReader(data)})
	assert.ErrorIs(t, err, ErrInvalidFileType)

	_, err = s.Stage(context.Background(), File{Name: "x.png", ContentType: MIMEPNG, Size: 4, Content: strings.NewReader("nope")})
	assert.ErrorIs(t, err, ErrUnreadableImage)

	_, err = s.Stage(context.Background(), File{Name: "x.png", ContentType: MIMEPNG, Size: 4})
	assert.ErrorIs(t, err, ErrUnreadableImage)
}

func TestStager_CanceledContext(t *testing.T) {
	s := newTestStager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Stage(ctx, File{ContentType: MIMEPNG, Size: 1})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStager_StageAsync(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newTestStager(t)
	data := pngBytes(t, 2, 2)

	results := s.StageAsync(context.Background(), GallerySlot(1), File{
		Name: "g.png", ContentType: MIMEPNG, Size: int64(len(data)), Content: bytes.NewReader(data),
	})

	res, ok := <-results
	require.True(t, ok)
	require.True(t, res.OK(), "unexpected error: %v", res.Err)
	assert.Equal(t, GallerySlot(1), res.Slot)

	_, ok = <-results
	assert.False(t, ok, "expected channel to be closed after one result")
}

func TestStager_StageAsyncError(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newTestStager(t)
	res := <-s.StageAsync(context.Background(), ProfileSlot(), File{ContentType: "image/gif", Size: 1})
	assert.ErrorIs(t, res.Err, ErrInvalidFileType)
	assert.Equal(t, FieldProfileImage, res.Slot.FieldKey())
}

func TestStager_Release(t *testing.T) {
	var evicted []string
	cache, err := NewPreviewCache(1, WithEvictHook(func(id string) { evicted = append(evicted, id) }))
	require.NoError(t, err)
	s := NewStager(nil, cache)

	data := pngBytes(t, 1, 1)
	first, err := s.Stage(context.Background(), File{ContentType: MIMEPNG, Size: 1, Content: bytes.NewReader(data)})
	require.NoError(t, err)
	second, err := s.Stage(context.Background(), File{ContentType: MIMEPNG, Size: 1, Content: bytes.NewReader(data)})
	require.NoError(t, err)

	assert.False(t, cache.Contains(first.ID), "capacity one should evict the first preview")
	s.Release(second)
	assert.False(t, cache.Contains(second.ID))
	assert.Equal(t, []string{first.ID, second.ID}, evicted)
}
