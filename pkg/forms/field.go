package forms

// FieldType identifies how a field is presented.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldEmail       FieldType = "email"
	FieldNumber      FieldType = "number"
	FieldTextarea    FieldType = "textarea"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
	FieldImage       FieldType = "image"
	FieldGallery     FieldType = "gallery"
)

// Field describes one input of a step. Adapters use it to render prompts or
// HTML; validation lives with the step, not the descriptor.
type Field struct {
	// Name is the record attribute key, also used as the ErrorMap key.
	Name string

	Type  FieldType
	Label string

	Placeholder string

	// Help is shown below the field.
	Help string

	// Options are the choices for select and multiselect fields.
	Options []Option

	// MinItems and MaxItems bound multiselect and gallery fields.
	MinItems int
	MaxItems int
}

// Option is a selectable value.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// FieldOption configures a field.
type FieldOption func(*Field)

// NewField creates a new field.
func NewField(name string, fieldType FieldType, label string, opts ...FieldOption) Field {
	field := Field{
		Name:  name,
		Type:  fieldType,
		Label: label,
	}
	for _, opt := range opts {
		opt(&field)
	}
	return field
}

// WithPlaceholder sets the placeholder text.
func WithPlaceholder(placeholder string) FieldOption {
	return func(f *Field) {
		f.Placeholder = placeholder
	}
}

// WithHelp sets the help text.
func WithHelp(help string) FieldOption {
	return func(f *Field) {
		f.Help = help
	}
}

// WithOptions sets the select options.
func WithOptions(options ...Option) FieldOption {
	return func(f *Field) {
		f.Options = options
	}
}

// WithItems bounds the number of selected items.
func WithItems(min, max int) FieldOption {
	return func(f *Field) {
		f.MinItems = min
		f.MaxItems = max
	}
}

// OptionLabel returns the label for value, falling back to the value itself.
func (f Field) OptionLabel(value string) string {
	for _, opt := range f.Options {
		if opt.Value == value {
			return opt.Label
		}
	}
	return value
}

// TextField creates a text field.
func TextField(name, label string, opts ...FieldOption) Field {
	return NewField(name, FieldText, label, opts...)
}

// EmailField creates an email field.
func EmailField(name, label string, opts ...FieldOption) Field {
	return NewField(name, FieldEmail, label, opts...)
}

// NumberField creates a number field.
func NumberField(name, label string, opts ...FieldOption) Field {
	return NewField(name, FieldNumber, label, opts...)
}

// TextareaField creates a textarea field.
func TextareaField(name, label string, opts ...FieldOption) Field {
	return NewField(name, FieldTextarea, label, opts...)
}

// SelectField creates a single-choice field.
func SelectField(name, label string, options []Option, opts ...FieldOption) Field {
	field := NewField(name, FieldSelect, label, opts...)
	field.Options = options
	return field
}

// MultiSelectField creates a set field.
func MultiSelectField(name, label string, options []Option, opts ...FieldOption) Field {
	field := NewField(name, FieldMultiSelect, label, opts...)
	field.Options = options
	return field
}

// ImageField creates a single image slot.
func ImageField(name, label string, opts ...FieldOption) Field {
	return NewField(name, FieldImage, label, opts...)
}

// GalleryField creates an ordered image gallery.
func GalleryField(name, label string, opts ...FieldOption) Field {
	return NewField(name, FieldGallery, label, opts...)
}
