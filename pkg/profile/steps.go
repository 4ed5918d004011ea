package profile

import (
	"github.com/kindredhq/intake/pkg/forms"
	"github.com/kindredhq/intake/pkg/media"
	"github.com/kindredhq/intake/pkg/wizard"
)

// Validation messages.
const (
	MsgNameRequired         = "Name is required"
	MsgAgeMinimum           = "Must be 18 or older"
	MsgEmailInvalid         = "Valid email is required"
	MsgProfileImageRequired = "Profile picture is required"
	MsgSelectOption         = "Please select an option"
	MsgSelectPreference     = "Select at least one preference"
	MsgMarriageGoals        = "Please describe your marriage goals"
	MsgSelectTraits         = "Select at least three traits"
	MsgUploadPhotos         = "Upload at least two photos"
)

const (
	// MinimumAge is the youngest accepted age.
	MinimumAge = 18
	// MinTraits is the fewest personality traits accepted.
	MinTraits = 3
	// MinPhotos is the fewest gallery images accepted.
	MinPhotos = 2
)

// Rules validates records against a catalog.
type Rules struct {
	catalog *Catalog
}

// NewRules returns rules for catalog. A nil catalog uses the default one.
func NewRules(catalog *Catalog) *Rules {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Rules{catalog: catalog}
}

// Catalog returns the catalog the rules check enum answers against.
func (r *Rules) Catalog() *Catalog {
	return r.catalog
}

func (r *Rules) choice(errs forms.ErrorMap, field, value string) {
	forms.Check(errs, field, value,
		forms.WithMessage(forms.Required(), MsgSelectOption),
		forms.WithMessage(forms.OneOf(r.catalog.Values(field)...), MsgSelectOption),
	)
}

// Identity validates step 1: name, age, email and profile picture.
func (r *Rules) Identity(rec Record) forms.ErrorMap {
	errs := forms.NewErrorMap()
	forms.Check(errs, FieldName, rec.Name, forms.WithMessage(forms.Required(), MsgNameRequired))
	forms.Check(errs, FieldAge, rec.Age, forms.WithMessage(forms.MinInt(MinimumAge), MsgAgeMinimum))
	forms.Check(errs, FieldEmail, rec.Email,
		forms.WithMessage(forms.Required(), MsgEmailInvalid),
		forms.WithMessage(forms.Email(), MsgEmailInvalid),
	)
	forms.Check(errs, FieldProfileImage, rec.ProfileImage,
		forms.WithMessage(forms.Required(), MsgProfileImageRequired))
	return errs
}

// Values validates step 2: the four value enums and lifestyle preferences.
func (r *Rules) Values(rec Record) forms.ErrorMap {
	errs := forms.NewErrorMap()
	r.choice(errs, FieldFamilyValues, rec.FamilyValues)
	r.choice(errs, FieldReligion, rec.Religion)
	r.choice(errs, FieldCareerGoals, rec.CareerGoals)
	r.choice(errs, FieldFinancialPriorities, rec.FinancialPriorities)
	forms.Check(errs, FieldLifestylePreferences, rec.LifestylePreferences,
		forms.WithMessage(forms.MinItems(1), MsgSelectPreference),
		forms.WithMessage(r.subsetOf(FieldLifestylePreferences), MsgSelectPreference),
	)
	return errs
}

// Goals validates step 3: marriage goals, children stance, conflict style,
// personality traits and the photo gallery.
func (r *Rules) Goals(rec Record) forms.ErrorMap {
	errs := forms.NewErrorMap()
	forms.Check(errs, FieldMarriageGoals, rec.MarriageGoals,
		forms.WithMessage(forms.Required(), MsgMarriageGoals))
	r.choice(errs, FieldChildrenStance, rec.ChildrenStance)
	r.choice(errs, FieldConflictStyle, rec.ConflictStyle)
	forms.Check(errs, FieldPersonalityTraits, rec.PersonalityTraits,
		forms.WithMessage(forms.MinItems(MinTraits), MsgSelectTraits),
		forms.WithMessage(r.subsetOf(FieldPersonalityTraits), MsgSelectTraits),
	)
	forms.Check(errs, FieldGallery, rec.Gallery,
		forms.WithMessage(forms.MinItems(MinPhotos), MsgUploadPhotos))
	return errs
}

func (r *Rules) subsetOf(field string) forms.Validator {
	allowed := forms.OneOf(r.catalog.Values(field)...)
	return forms.Custom(func(value any) error {
		values, _ := value.([]string)
		for _, v := range values {
			if err := allowed.Validate(v); err != nil {
				return err
			}
		}
		return nil
	}, MsgSelectOption)
}

// Steps returns the three profile intake steps.
func Steps(catalog *Catalog) []wizard.Step[Record] {
	r := NewRules(catalog)
	c := r.catalog
	return []wizard.Step[Record]{
		{
			Name:  "identity",
			Title: "About you",
			Fields: []forms.Field{
				forms.TextField(FieldName, "Full name", forms.WithPlaceholder("Your name")),
				forms.NumberField(FieldAge, "Age", forms.WithHelp("You must be 18 or older")),
				forms.EmailField(FieldEmail, "Email", forms.WithPlaceholder("you@example.com")),
				forms.ImageField(FieldProfileImage, "Profile picture", forms.WithHelp("JPG or PNG, up to 5MB")),
			},
			Validate: r.Identity,
		},
		{
			Name:  "values",
			Title: "Values and lifestyle",
			Fields: []forms.Field{
				forms.SelectField(FieldFamilyValues, "Family values", c.FamilyValues),
				forms.SelectField(FieldReligion, "Religion", c.Religion),
				forms.SelectField(FieldCareerGoals, "Career goals", c.CareerGoals),
				forms.SelectField(FieldFinancialPriorities, "Financial priorities", c.FinancialPriorities),
				forms.MultiSelectField(FieldLifestylePreferences, "Lifestyle preferences", c.LifestylePreferences,
					forms.WithItems(1, 0)),
			},
			Validate: r.Values,
		},
		{
			Name:  "goals",
			Title: "Goals and personality",
			Fields: []forms.Field{
				forms.TextareaField(FieldMarriageGoals, "Marriage goals",
					forms.WithPlaceholder("What are you looking for in a marriage?")),
				forms.SelectField(FieldChildrenStance, "Children", c.ChildrenStance),
				forms.SelectField(FieldConflictStyle, "Conflict style", c.ConflictStyle),
				forms.MultiSelectField(FieldPersonalityTraits, "Personality traits", c.PersonalityTraits,
					forms.WithItems(MinTraits, 0)),
				forms.GalleryField(FieldGallery, "Photo gallery",
					forms.WithItems(MinPhotos, media.GalleryCapacity),
					forms.WithHelp("Add 2 to 4 photos")),
			},
			Validate: r.Goals,
		},
	}
}

// NewWizard builds a controller over the profile steps seeded with initial.
func NewWizard(catalog *Catalog, initial Record, opts ...wizard.Option[Record]) (*wizard.Controller[Record], error) {
	opts = append([]wizard.Option[Record]{wizard.WithCloner(Record.Clone)}, opts...)
	return wizard.New(Steps(catalog), Prefill(initial), opts...)
}
