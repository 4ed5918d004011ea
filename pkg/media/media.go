// Package media stages user-selected images for local preview. Staged bytes
// never leave the process: a Reference only resolves through the preview
// cache of the stager that produced it.
package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Common errors.
var (
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrUnreadableImage = errors.New("image could not be decoded")
	ErrGalleryFull     = errors.New("gallery is full")
	ErrSlotOutOfRange  = errors.New("slot index out of range")
	ErrUnknownSlot     = errors.New("unknown media slot")
)

const (
	// MaxFileSize is the largest accepted image, in bytes.
	MaxFileSize int64 = 5 * 1024 * 1024

	// GalleryCapacity is the fixed number of gallery slots.
	GalleryCapacity = 4

	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

// Message returns the user-facing text for a staging error.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidFileType):
		return "Only JPG/PNG files are allowed"
	case errors.Is(err, ErrFileTooLarge):
		return "Image must be less than 5MB"
	case errors.Is(err, ErrGalleryFull):
		return fmt.Sprintf("You can upload up to %d photos", GalleryCapacity)
	case errors.Is(err, ErrUnreadableImage):
		return "Image could not be read"
	default:
		return "Image could not be staged"
	}
}

// Reference is a local handle to a staged image, usable only for in-app
// preview.
type Reference struct {
	ID          string    `json:"id" msgpack:"id"`
	URL         string    `json:"url" msgpack:"url"`
	FileName    string    `json:"file_name" msgpack:"file_name"`
	ContentType string    `json:"content_type" msgpack:"content_type"`
	Size        int64     `json:"size" msgpack:"size"`
	Width       int       `json:"width" msgpack:"width"`
	Height      int       `json:"height" msgpack:"height"`
	StagedAt    time.Time `json:"staged_at" msgpack:"staged_at"`
}

// IsZero reports whether r is absent.
func (r *Reference) IsZero() bool {
	return r == nil || r.ID == ""
}

// SlotKind names a media destination.
type SlotKind string

const (
	SlotProfile SlotKind = "profile"
	SlotGallery SlotKind = "gallery"
)

// Field keys the slots report errors under.
const (
	FieldProfileImage = "profileImagePreview"
	FieldGallery      = "galleryPreviews"
)

// Slot is the target of a staging operation: the single profile image or a
// gallery position.
type Slot struct {
	Kind  SlotKind `json:"kind" msgpack:"kind"`
	Index int      `json:"index" msgpack:"index"`
}

// ProfileSlot returns the profile image slot.
func ProfileSlot() Slot {
	return Slot{Kind: SlotProfile}
}

// GallerySlot returns the gallery slot at index.
func GallerySlot(index int) Slot {
	return Slot{Kind: SlotGallery, Index: index}
}

// ParseSlot parses the kind and index sent by a client.
func ParseSlot(kind, index string) (Slot, error) {
	switch SlotKind(strings.TrimSpace(kind)) {
	case SlotProfile:
		return ProfileSlot(), nil
	case SlotGallery:
		if strings.TrimSpace(index) == "" {
			return GallerySlot(GalleryCapacity), nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(index))
		if err != nil || i < 0 {
			return Slot{}, fmt.Errorf("%w: %q", ErrSlotOutOfRange, index)
		}
		return GallerySlot(i), nil
	default:
		return Slot{}, fmt.Errorf("%w: %q", ErrUnknownSlot, kind)
	}
}

// FieldKey returns the record field the slot belongs to.
func (s Slot) FieldKey() string {
	if s.Kind == SlotGallery {
		return FieldGallery
	}
	return FieldProfileImage
}

// Key identifies the slot for pending-status bookkeeping.
func (s Slot) Key() string {
	if s.Kind == SlotGallery {
		return string(SlotGallery) + "." + strconv.Itoa(s.Index)
	}
	return string(SlotProfile)
}

func (s Slot) String() string {
	return s.Key()
}
