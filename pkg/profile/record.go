// Package profile defines the profile intake record and the validation rules
// of its three wizard steps.
package profile

import (
	"slices"

	"github.com/kindredhq/intake/pkg/media"
)

// Record field keys. They are used as ErrorMap keys and as event field names.
const (
	FieldName                 = "name"
	FieldAge                  = "age"
	FieldEmail                = "email"
	FieldProfileImage         = media.FieldProfileImage
	FieldFamilyValues         = "familyValues"
	FieldReligion             = "religion"
	FieldCareerGoals          = "careerGoals"
	FieldFinancialPriorities  = "financialPriorities"
	FieldLifestylePreferences = "lifestylePreferences"
	FieldMarriageGoals        = "marriageGoals"
	FieldChildrenStance       = "childrenStance"
	FieldConflictStyle        = "conflictStyle"
	FieldPersonalityTraits    = "personalityTraits"
	FieldGallery              = media.FieldGallery
)

// Record is the accumulated answer set of the profile intake.
type Record struct {
	Name         string           `json:"name" msgpack:"name"`
	Age          string           `json:"age" msgpack:"age"`
	Email        string           `json:"email" msgpack:"email"`
	ProfileImage *media.Reference `json:"profileImagePreview,omitempty" msgpack:"profileImagePreview,omitempty"`

	FamilyValues         string   `json:"familyValues" msgpack:"familyValues"`
	Religion             string   `json:"religion" msgpack:"religion"`
	CareerGoals          string   `json:"careerGoals" msgpack:"careerGoals"`
	FinancialPriorities  string   `json:"financialPriorities" msgpack:"financialPriorities"`
	LifestylePreferences []string `json:"lifestylePreferences" msgpack:"lifestylePreferences"`

	MarriageGoals     string        `json:"marriageGoals" msgpack:"marriageGoals"`
	ChildrenStance    string        `json:"childrenStance" msgpack:"childrenStance"`
	ConflictStyle     string        `json:"conflictStyle" msgpack:"conflictStyle"`
	PersonalityTraits []string      `json:"personalityTraits" msgpack:"personalityTraits"`
	Gallery           media.Gallery `json:"galleryPreviews" msgpack:"galleryPreviews"`
}

// Prefill returns a record seeded from partial, e.g. an existing profile
// being edited. The result shares no memory with partial.
func Prefill(partial Record) Record {
	return partial.Clone()
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	if r.ProfileImage != nil {
		img := *r.ProfileImage
		out.ProfileImage = &img
	}
	out.LifestylePreferences = slices.Clone(r.LifestylePreferences)
	out.PersonalityTraits = slices.Clone(r.PersonalityTraits)
	out.Gallery = r.Gallery.Clone()
	return out
}

// SetText assigns a scalar field by key. It reports false for unknown keys
// and for set or media fields.
func (r *Record) SetText(field, value string) bool {
	switch field {
	case FieldName:
		r.Name = value
	case FieldAge:
		r.Age = value
	case FieldEmail:
		r.Email = value
	case FieldFamilyValues:
		r.FamilyValues = value
	case FieldReligion:
		r.Religion = value
	case FieldCareerGoals:
		r.CareerGoals = value
	case FieldFinancialPriorities:
		r.FinancialPriorities = value
	case FieldMarriageGoals:
		r.MarriageGoals = value
	case FieldChildrenStance:
		r.ChildrenStance = value
	case FieldConflictStyle:
		r.ConflictStyle = value
	default:
		return false
	}
	return true
}

// Text returns the scalar field stored under key.
func (r *Record) Text(field string) string {
	switch field {
	case FieldName:
		return r.Name
	case FieldAge:
		return r.Age
	case FieldEmail:
		return r.Email
	case FieldFamilyValues:
		return r.FamilyValues
	case FieldReligion:
		return r.Religion
	case FieldCareerGoals:
		return r.CareerGoals
	case FieldFinancialPriorities:
		return r.FinancialPriorities
	case FieldMarriageGoals:
		return r.MarriageGoals
	case FieldChildrenStance:
		return r.ChildrenStance
	case FieldConflictStyle:
		return r.ConflictStyle
	}
	return ""
}

// Set returns the set field stored under key.
func (r *Record) Set(field string) []string {
	switch field {
	case FieldLifestylePreferences:
		return r.LifestylePreferences
	case FieldPersonalityTraits:
		return r.PersonalityTraits
	}
	return nil
}

// Toggle adds value to the set field if absent and removes it otherwise.
// It reports false for fields that are not sets.
func (r *Record) Toggle(field, value string) bool {
	var set *[]string
	switch field {
	case FieldLifestylePreferences:
		set = &r.LifestylePreferences
	case FieldPersonalityTraits:
		set = &r.PersonalityTraits
	default:
		return false
	}
	if i := slices.Index(*set, value); i >= 0 {
		*set = slices.Delete(*set, i, i+1)
	} else {
		*set = append(*set, value)
	}
	return true
}

// PlaceMedia stores ref in slot. The profile slot is replaced; a gallery slot
// is replaced when occupied and appended otherwise. The displaced reference,
// if any, is returned so its preview can be released.
func (r *Record) PlaceMedia(slot media.Slot, ref media.Reference) (media.Reference, error) {
	switch slot.Kind {
	case media.SlotProfile:
		var old media.Reference
		if r.ProfileImage != nil {
			old = *r.ProfileImage
		}
		r.ProfileImage = &ref
		return old, nil
	case media.SlotGallery:
		return r.Gallery.UpsertAt(slot.Index, ref)
	default:
		return media.Reference{}, media.ErrUnknownSlot
	}
}

// RemoveMedia clears slot and returns the removed reference. Gallery entries
// after the removed one shift down.
func (r *Record) RemoveMedia(slot media.Slot) (media.Reference, error) {
	switch slot.Kind {
	case media.SlotProfile:
		if r.ProfileImage == nil {
			return media.Reference{}, nil
		}
		old := *r.ProfileImage
		r.ProfileImage = nil
		return old, nil
	case media.SlotGallery:
		return r.Gallery.RemoveAt(slot.Index)
	default:
		return media.Reference{}, media.ErrUnknownSlot
	}
}

// MediaFull reports whether slot cannot accept a new image without
// replacing one.
func (r *Record) MediaFull(slot media.Slot) bool {
	if slot.Kind != media.SlotGallery {
		return false
	}
	return r.Gallery.Full() && slot.Index >= r.Gallery.Len()
}
