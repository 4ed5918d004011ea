package profile

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kindredhq/intake/pkg/forms"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog holds the choices of every enum and set field.
type Catalog struct {
	FamilyValues         []forms.Option `yaml:"familyValues"`
	Religion             []forms.Option `yaml:"religion"`
	CareerGoals          []forms.Option `yaml:"careerGoals"`
	FinancialPriorities  []forms.Option `yaml:"financialPriorities"`
	LifestylePreferences []forms.Option `yaml:"lifestylePreferences"`
	ChildrenStance       []forms.Option `yaml:"childrenStance"`
	ConflictStyle        []forms.Option `yaml:"conflictStyle"`
	PersonalityTraits    []forms.Option `yaml:"personalityTraits"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("profile: embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog from a YAML file. An empty path returns the
// default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes YAML catalog data. Every field must offer at least
// one option.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for field, opts := range c.byField() {
		if len(opts) == 0 {
			return nil, fmt.Errorf("parse catalog: %s has no options", field)
		}
		for _, o := range opts {
			if o.Value == "" {
				return nil, fmt.Errorf("parse catalog: %s has an option without value", field)
			}
		}
	}
	return &c, nil
}

func (c *Catalog) byField() map[string][]forms.Option {
	return map[string][]forms.Option{
		FieldFamilyValues:         c.FamilyValues,
		FieldReligion:             c.Religion,
		FieldCareerGoals:          c.CareerGoals,
		FieldFinancialPriorities:  c.FinancialPriorities,
		FieldLifestylePreferences: c.LifestylePreferences,
		FieldChildrenStance:       c.ChildrenStance,
		FieldConflictStyle:        c.ConflictStyle,
		FieldPersonalityTraits:    c.PersonalityTraits,
	}
}

// Options returns the choices for field, or nil for free-form fields.
func (c *Catalog) Options(field string) []forms.Option {
	return c.byField()[field]
}

// Values returns the accepted values for field.
func (c *Catalog) Values(field string) []string {
	opts := c.Options(field)
	values := make([]string, len(opts))
	for i, o := range opts {
		values[i] = o.Value
	}
	return values
}
