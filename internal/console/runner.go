package console

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/kindredhq/intake/internal/intake"
	"github.com/kindredhq/intake/pkg/forms"
	"github.com/kindredhq/intake/pkg/logging"
	"github.com/kindredhq/intake/pkg/media"
	"github.com/kindredhq/intake/pkg/profile"
	"github.com/kindredhq/intake/pkg/wizard"
)

// sniffLen is how many leading bytes are inspected to detect a file's type.
const sniffLen = 512

const (
	actionContinue = "Continue"
	actionFinish   = "Finish"
	actionBack     = "Back"
)

// Runner asks every step of the profile intake on a PromptDriver.
type Runner struct {
	driver     PromptDriver
	catalog    *profile.Catalog
	stager     *media.Stager
	policy     *bluemonday.Policy
	open       func(name string) (fs.File, error)
	onComplete wizard.CompletionFunc[profile.Record]
	logger     logging.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithFS resolves image paths inside fsys instead of the local filesystem.
func WithFS(fsys fs.FS) Option {
	return func(r *Runner) {
		r.open = fsys.Open
	}
}

// WithCompletion is called once with the finished record.
func WithCompletion(fn wizard.CompletionFunc[profile.Record]) Option {
	return func(r *Runner) {
		r.onComplete = fn
	}
}

// WithLogger sets the runner logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a runner. A nil catalog uses the default one.
func NewRunner(driver PromptDriver, catalog *profile.Catalog, stager *media.Stager, opts ...Option) *Runner {
	if catalog == nil {
		catalog = profile.DefaultCatalog()
	}
	r := &Runner{
		driver:  driver,
		catalog: catalog,
		stager:  stager,
		policy:  bluemonday.StrictPolicy(),
		open:    func(name string) (fs.File, error) { return os.Open(name) },
		logger:  logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run walks the wizard seeded with initial until it completes and returns
// the final record. An interrupted prompt returns ErrAborted.
func (r *Runner) Run(ctx context.Context, initial profile.Record) (profile.Record, error) {
	var final profile.Record
	wz, err := profile.NewWizard(r.catalog, initial,
		wizard.WithLogger[profile.Record](r.logger),
		wizard.WithCompletion[profile.Record](func(ctx context.Context, rec profile.Record) {
			final = rec
			if r.onComplete != nil {
				r.onComplete(ctx, rec)
			}
		}),
	)
	if err != nil {
		return profile.Record{}, err
	}

	for !wz.Completed() {
		step := wz.Current()
		if err := r.info(ctx, "Step %d of %d: %s", wz.Step(), wz.Total(), step.Title); err != nil {
			return profile.Record{}, err
		}
		for _, f := range step.Fields {
			if err := r.ask(ctx, wz, f); err != nil {
				return profile.Record{}, err
			}
		}

		if wz.Step() > 1 {
			next := actionContinue
			if wz.Step() == wz.Total() {
				next = actionFinish
			}
			choice, err := r.driver.Select(ctx, SelectConfig{
				Message: "What next?",
				Options: []string{next, actionBack},
			})
			if err != nil {
				return profile.Record{}, err
			}
			if choice == 1 {
				wz.Back()
				continue
			}
		}

		if wz.Next(ctx) == wizard.Stayed {
			for _, f := range step.Fields {
				if msg := wz.Errors().Get(f.Name); msg != "" {
					if err := r.info(ctx, "  %s: %s", f.Label, msg); err != nil {
						return profile.Record{}, err
					}
				}
			}
		}
	}
	return final, nil
}

func (r *Runner) ask(ctx context.Context, wz *wizard.Controller[profile.Record], f forms.Field) error {
	rec := wz.Record()
	help := helpText(f.Help, wz.Errors().Get(f.Name))

	switch f.Type {
	case forms.FieldSelect:
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      f.Label,
			Options:      labels(f.Options),
			DefaultIndex: optionIndex(f.Options, rec.Text(f.Name)),
			Help:         help,
		})
		if err != nil {
			return err
		}
		if idx >= 0 && idx < len(f.Options) {
			rec.SetText(f.Name, f.Options[idx].Value)
		}
	case forms.FieldMultiSelect:
		var defaults []int
		for _, v := range rec.Set(f.Name) {
			if i := optionIndex(f.Options, v); i >= 0 {
				defaults = append(defaults, i)
			}
		}
		picked, err := r.driver.MultiSelect(ctx, SelectConfig{
			Message:  f.Label,
			Options:  labels(f.Options),
			Defaults: defaults,
			Help:     help,
		})
		if err != nil {
			return err
		}
		var values []string
		for _, i := range picked {
			if i >= 0 && i < len(f.Options) {
				values = append(values, f.Options[i].Value)
			}
		}
		replaceSet(rec, f.Name, values)
	case forms.FieldImage:
		return r.askImage(ctx, wz, f, help)
	case forms.FieldGallery:
		return r.askGallery(ctx, wz, f, help)
	default:
		return r.askText(ctx, wz, f, help)
	}
	return nil
}

// askText reprompts while sanitizing changes the answer, offering the
// cleaned text as the default.
func (r *Runner) askText(ctx context.Context, wz *wizard.Controller[profile.Record], f forms.Field, help string) error {
	rec := wz.Record()
	for {
		v, err := r.driver.Input(ctx, InputConfig{
			Message:   f.Label,
			Default:   rec.Text(f.Name),
			Help:      help,
			Multiline: f.Type == forms.FieldTextarea,
		})
		if err != nil {
			return err
		}
		clean, cleanErr := intake.Sanitize(r.policy, v)
		rec.SetText(f.Name, clean)
		if cleanErr == nil {
			wz.ClearFieldError(f.Name)
			return nil
		}
		wz.SetFieldError(f.Name, intake.TextMessage(cleanErr))
		if err := r.info(ctx, "  %s", intake.TextMessage(cleanErr)); err != nil {
			return err
		}
	}
}

func (r *Runner) askImage(ctx context.Context, wz *wizard.Controller[profile.Record], f forms.Field, help string) error {
	rec := wz.Record()
	for {
		message := f.Label + " (file path)"
		if !rec.ProfileImage.IsZero() {
			message = fmt.Sprintf("%s (file path, empty keeps %s)", f.Label, rec.ProfileImage.FileName)
		}
		path, err := r.driver.Input(ctx, InputConfig{Message: message, Help: help})
		if err != nil {
			return err
		}
		if strings.TrimSpace(path) == "" {
			return nil
		}
		ref, err := r.stage(ctx, path)
		if err != nil {
			wz.SetFieldError(f.Name, media.Message(err))
			if err := r.info(ctx, "  %s", media.Message(err)); err != nil {
				return err
			}
			continue
		}
		old, _ := rec.PlaceMedia(media.ProfileSlot(), ref)
		r.release(old)
		wz.ClearFieldError(f.Name)
		return nil
	}
}

func (r *Runner) askGallery(ctx context.Context, wz *wizard.Controller[profile.Record], f forms.Field, help string) error {
	rec := wz.Record()
	if n := rec.Gallery.Len(); n > 0 {
		keep, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("Keep the %d photos already added?", n),
			Default: true,
		})
		if err != nil {
			return err
		}
		if !keep {
			for _, ref := range rec.Gallery {
				r.release(ref)
			}
			rec.Gallery = nil
		}
	}

	for !rec.Gallery.Full() {
		path, err := r.driver.Input(ctx, InputConfig{
			Message: fmt.Sprintf("Photo %d of %d (file path, empty to finish)", rec.Gallery.Len()+1, media.GalleryCapacity),
			Help:    help,
		})
		if err != nil {
			return err
		}
		if strings.TrimSpace(path) == "" {
			return nil
		}
		ref, err := r.stage(ctx, path)
		if err == nil {
			_, err = rec.PlaceMedia(media.GallerySlot(rec.Gallery.Len()), ref)
		}
		if err != nil {
			r.release(ref)
			wz.SetFieldError(f.Name, media.Message(err))
			if err := r.info(ctx, "  %s", media.Message(err)); err != nil {
				return err
			}
			continue
		}
		wz.ClearFieldError(f.Name)
	}
	return nil
}

// stage reads the file at path and stages it. The content type is sniffed
// from the leading bytes.
func (r *Runner) stage(ctx context.Context, path string) (media.Reference, error) {
	path = strings.TrimSpace(path)
	f, err := r.open(path)
	if err != nil {
		return media.Reference{}, fmt.Errorf("%w: %v", media.ErrUnreadableImage, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return media.Reference{}, fmt.Errorf("%w: %v", media.ErrUnreadableImage, err)
	}
	br := bufio.NewReaderSize(f, sniffLen)
	head, _ := br.Peek(sniffLen)

	ref, err := r.stager.Stage(ctx, media.File{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(head),
		Size:        info.Size(),
		Content:     br,
	})
	if err != nil {
		r.logger.Debug("console image rejected", logging.String("path", path), logging.Err(err))
		return media.Reference{}, err
	}
	return ref, nil
}

func (r *Runner) release(ref media.Reference) {
	if !ref.IsZero() {
		r.stager.Release(ref)
	}
}

func (r *Runner) info(ctx context.Context, format string, args ...any) error {
	return r.driver.Info(ctx, fmt.Sprintf(format, args...))
}

func helpText(help, problem string) string {
	switch {
	case problem == "":
		return help
	case help == "":
		return problem
	default:
		return problem + ". " + help
	}
}

func labels(opts []forms.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Label
	}
	return out
}

func optionIndex(opts []forms.Option, value string) int {
	return slices.IndexFunc(opts, func(o forms.Option) bool { return o.Value == value })
}

// replaceSet makes the set field hold exactly values, keeping the order in
// which existing members were chosen.
func replaceSet(rec *profile.Record, field string, values []string) {
	for _, v := range slices.Clone(rec.Set(field)) {
		if !slices.Contains(values, v) {
			rec.Toggle(field, v)
		}
	}
	for _, v := range values {
		if !slices.Contains(rec.Set(field), v) {
			rec.Toggle(field, v)
		}
	}
}
