package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindredhq/intake/pkg/media"
)

func TestRecord_Toggle(t *testing.T) {
	var r Record
	assert.True(t, r.Toggle(FieldPersonalityTraits, "funny"))
	r.Toggle(FieldPersonalityTraits, "loyal")
	r.Toggle(FieldPersonalityTraits, "funny")
	assert.Equal(t, []string{"loyal"}, r.PersonalityTraits)

	assert.False(t, r.Toggle(FieldName, "x"))
}

func TestRecord_CloneIsDeep(t *testing.T) {
	orig := complete()
	clone := orig.Clone()

	clone.ProfileImage.ID = "changed"
	clone.Gallery[0].ID = "changed"
	clone.PersonalityTraits[0] = "changed"

	assert.Equal(t, "avatar", orig.ProfileImage.ID)
	assert.Equal(t, "g1", orig.Gallery[0].ID)
	assert.Equal(t, "honest", orig.PersonalityTraits[0])
}

func TestRecord_PlaceMedia(t *testing.T) {
	var r Record

	old, err := r.PlaceMedia(media.ProfileSlot(), photo("a"))
	require.NoError(t, err)
	assert.True(t, old.IsZero())

	old, err = r.PlaceMedia(media.ProfileSlot(), photo("b"))
	require.NoError(t, err)
	assert.Equal(t, "a", old.ID)
	assert.Equal(t, "b", r.ProfileImage.ID)

	for i := 0; i < media.GalleryCapacity; i++ {
		_, err := r.PlaceMedia(media.GallerySlot(media.GalleryCapacity), photo(string(rune('p'+i))))
		require.NoError(t, err)
	}
	assert.True(t, r.MediaFull(media.GallerySlot(media.GalleryCapacity)))
	assert.False(t, r.MediaFull(media.GallerySlot(1)))

	_, err = r.PlaceMedia(media.GallerySlot(media.GalleryCapacity), photo("extra"))
	assert.True(t, errors.Is(err, media.ErrGalleryFull))
	assert.Equal(t, media.GalleryCapacity, r.Gallery.Len())

	removed, err := r.RemoveMedia(media.GallerySlot(0))
	require.NoError(t, err)
	assert.Equal(t, "p", removed.ID)
	assert.Equal(t, "q", r.Gallery[0].ID)

	removed, err = r.RemoveMedia(media.ProfileSlot())
	require.NoError(t, err)
	assert.Equal(t, "b", removed.ID)
	assert.Nil(t, r.ProfileImage)
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Contains(t, c.Values(FieldReligion), "none")
	assert.Nil(t, c.Options(FieldName))

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("familyValues:\n  - {value: x, label: X}\n"), 0o600))

	_, err = LoadCatalog(path)
	require.Error(t, err, "catalog missing fields must be rejected")

	_, err = LoadCatalog(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
