package intake

import (
	"context"
	"embed"
	"html/template"
	"io"
	"slices"
	"strings"

	"github.com/kindredhq/intake/pkg/core"
	"github.com/kindredhq/intake/pkg/forms"
	"github.com/kindredhq/intake/pkg/media"
	"github.com/kindredhq/intake/pkg/profile"
)

//go:embed templates/*.html
var templateFS embed.FS

var views = template.Must(template.New("intake").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/*.html"))

type stepView struct {
	Number int
	Title  string
	Active bool
	Done   bool
}

type optionView struct {
	Value    string
	Label    string
	Selected bool
}

type fieldView struct {
	Name        string
	Type        forms.FieldType
	Label       string
	Placeholder string
	Help        string
	Value       string
	Options     []optionView
	Error       string

	Image     *media.Reference
	Gallery   []media.Reference
	Uploading bool

	// Appending counts gallery images still staging after the last one.
	Appending []int
	CanAdd    bool
	Accept    string
}

type pageView struct {
	Step      int
	Total     int
	Title     string
	Steps     []stepView
	Fields    []fieldView
	First     bool
	Last      bool
	Compact   bool
	Completed bool
	Summary   []summaryLine
}

type summaryLine struct {
	Label string
	Value string
}

// Render draws the active step, or the summary after completion.
func (c *Component) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		if c.wizard.Completed() {
			return views.ExecuteTemplate(w, "complete", c.summaryView())
		}
		return views.ExecuteTemplate(w, "step", c.stepView())
	})
}

func (c *Component) stepView() pageView {
	wz := c.wizard
	current := wz.Current()
	view := pageView{
		Step:    wz.Step(),
		Total:   wz.Total(),
		Title:   current.Title,
		First:   wz.Step() == 1,
		Last:    wz.Step() == wz.Total(),
		Compact: c.viewport.Compact(),
	}
	for i, s := range wz.Steps() {
		n := i + 1
		view.Steps = append(view.Steps, stepView{
			Number: n,
			Title:  s.Title,
			Active: n == wz.Step(),
			Done:   n < wz.Step(),
		})
	}

	rec := wz.Record()
	errs := wz.Errors()
	for _, f := range current.Fields {
		fv := fieldView{
			Name:        f.Name,
			Type:        f.Type,
			Label:       f.Label,
			Placeholder: f.Placeholder,
			Help:        f.Help,
			Error:       errs.Get(f.Name),
			Accept:      media.MIMEJPEG + "," + media.MIMEPNG,
		}
		switch f.Type {
		case forms.FieldSelect:
			fv.Value = rec.Text(f.Name)
			fv.Options = options(f.Options, []string{fv.Value})
		case forms.FieldMultiSelect:
			fv.Options = options(f.Options, rec.Set(f.Name))
		case forms.FieldImage:
			fv.Image = rec.ProfileImage
			_, fv.Uploading = c.pending[media.ProfileSlot().Key()]
		case forms.FieldGallery:
			fv.Gallery = rec.Gallery
			for i := range rec.Gallery {
				if _, ok := c.pending[media.GallerySlot(i).Key()]; ok {
					fv.Uploading = true
				}
			}
			appending := c.pendingAppends()
			for i := 0; i < appending; i++ {
				fv.Appending = append(fv.Appending, rec.Gallery.Len()+i)
			}
			fv.CanAdd = rec.Gallery.Len()+appending < media.GalleryCapacity
		default:
			fv.Value = rec.Text(f.Name)
		}
		view.Fields = append(view.Fields, fv)
	}
	return view
}

func options(opts []forms.Option, selected []string) []optionView {
	out := make([]optionView, 0, len(opts))
	for _, o := range opts {
		out = append(out, optionView{
			Value:    o.Value,
			Label:    o.Label,
			Selected: slices.Contains(selected, o.Value),
		})
	}
	return out
}

func (c *Component) summaryView() pageView {
	rec := c.wizard.Record()
	cat := c.config.Catalog
	label := func(field, value string) string {
		for _, o := range cat.Options(field) {
			if o.Value == value {
				return o.Label
			}
		}
		return value
	}
	labels := func(field string, values []string) string {
		out := make([]string, 0, len(values))
		for _, v := range values {
			out = append(out, label(field, v))
		}
		return strings.Join(out, ", ")
	}

	return pageView{
		Completed: true,
		Title:     "Thank you",
		Compact:   c.viewport.Compact(),
		Summary: []summaryLine{
			{"Name", rec.Name},
			{"Age", rec.Age},
			{"Email", rec.Email},
			{"Family values", label(profile.FieldFamilyValues, rec.FamilyValues)},
			{"Religion", label(profile.FieldReligion, rec.Religion)},
			{"Career goals", label(profile.FieldCareerGoals, rec.CareerGoals)},
			{"Financial priorities", label(profile.FieldFinancialPriorities, rec.FinancialPriorities)},
			{"Lifestyle", labels(profile.FieldLifestylePreferences, rec.LifestylePreferences)},
			{"Marriage goals", rec.MarriageGoals},
			{"Children", label(profile.FieldChildrenStance, rec.ChildrenStance)},
			{"Conflict style", label(profile.FieldConflictStyle, rec.ConflictStyle)},
			{"Personality", labels(profile.FieldPersonalityTraits, rec.PersonalityTraits)},
		},
		Fields: []fieldView{{
			Name:    profile.FieldGallery,
			Type:    forms.FieldGallery,
			Image:   rec.ProfileImage,
			Gallery: rec.Gallery,
		}},
	}
}
