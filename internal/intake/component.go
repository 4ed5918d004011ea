// Package intake is the live web adapter of the profile intake wizard. It
// renders the active step, routes browser events into the step controller
// and stages uploaded images in the background.
package intake

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/kindredhq/intake/pkg/core"
	"github.com/kindredhq/intake/pkg/logging"
	"github.com/kindredhq/intake/pkg/media"
	"github.com/kindredhq/intake/pkg/profile"
	"github.com/kindredhq/intake/pkg/wizard"
)

// Name is the registry name of the intake component.
const Name = "profile-intake"

// Client events.
const (
	EventUpdate      = "update"
	EventToggle      = "toggle"
	EventNext        = "next"
	EventBack        = "back"
	EventRemoveMedia = "remove_media"
	EventViewport    = "viewport"
)

// CommandScrollTop asks the client to scroll back to the top.
const CommandScrollTop = "scroll_top"

// MaxTextLength caps free-text answers, in runes.
const MaxTextLength = 2000

var (
	// ErrUnknownEvent is returned for events the component does not handle.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrUnknownField is returned when an event names no record field.
	ErrUnknownField = errors.New("unknown field")

	// ErrMarkupRemoved reports free text that lost markup to sanitizing.
	ErrMarkupRemoved = errors.New("text contained markup")
	// ErrTextTooLong reports free text cut to MaxTextLength.
	ErrTextTooLong = errors.New("text too long")
)

// Messages shown on a text field whose answer was changed by Sanitize.
const (
	MsgMarkupRemoved = "Please remove HTML tags and angle brackets"
	MsgTextTooLong   = "Must be 2000 characters or fewer"
)

// CompletionFunc receives the completed record of a session. Failures are
// the host's to report; the wizard is already completed.
type CompletionFunc func(ctx context.Context, sessionID string, rec profile.Record)

// Config configures intake components.
type Config struct {
	Catalog *profile.Catalog
	Stager  *media.Stager

	// Initial prefills every new session, e.g. for editing a profile.
	Initial profile.Record

	OnComplete CompletionFunc

	// Policy sanitizes free text before it is stored.
	Policy *bluemonday.Policy

	// NewViewport builds the viewport of each session.
	NewViewport func() Viewport

	Logger logging.Logger
}

// DefaultConfig returns a configuration with the embedded catalog, a strict
// sanitizer and no stager.
func DefaultConfig() *Config {
	return &Config{
		Catalog:     profile.DefaultCatalog(),
		Policy:      bluemonday.StrictPolicy(),
		NewViewport: func() Viewport { return NewClientViewport() },
		Logger:      logging.NopLogger{},
	}
}

// NewFactory returns a component factory for the live session manager.
func NewFactory(config *Config) func() core.Component {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Catalog == nil {
		config.Catalog = profile.DefaultCatalog()
	}
	if config.Policy == nil {
		config.Policy = bluemonday.StrictPolicy()
	}
	if config.NewViewport == nil {
		config.NewViewport = func() Viewport { return NewClientViewport() }
	}
	if config.Logger == nil {
		config.Logger = logging.NopLogger{}
	}
	return func() core.Component {
		return &Component{config: config}
	}
}

// staged carries a background staging result back to the session.
type staged struct {
	key    string
	token  uint64
	result media.Result
}

// Component hosts one wizard. Its methods run on the session goroutine.
type Component struct {
	core.BaseComponent

	config    *Config
	sessionID string
	wizard    *wizard.Controller[profile.Record]
	viewport  Viewport
	logger    logging.Logger

	// pending maps a slot key to the token of its newest upload. A result
	// whose token is no longer current is discarded.
	pending map[string]pendingUpload
	token   uint64

	ctx    context.Context
	cancel context.CancelFunc
}

type pendingUpload struct {
	slot  media.Slot
	token uint64
}

func (c *Component) Name() string {
	return Name
}

func (c *Component) Mount(ctx context.Context, params core.Params, session core.Session) error {
	c.sessionID = core.SessionIDFromContext(ctx)
	c.logger = c.config.Logger.With(logging.String("session", c.sessionID))
	c.viewport = c.config.NewViewport()
	c.pending = make(map[string]pendingUpload)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if w, err := strconv.Atoi(params.Get("width")); err == nil {
		c.viewport.Resize(w)
	}

	wz, err := profile.NewWizard(c.config.Catalog, c.config.Initial,
		wizard.WithLogger[profile.Record](c.logger),
		wizard.WithTransitionHook[profile.Record](func(wizard.Transition) {
			c.viewport.ScrollToTop()
		}),
		wizard.WithCompletion[profile.Record](func(ctx context.Context, rec profile.Record) {
			c.logger.Info("profile intake completed")
			if c.config.OnComplete != nil {
				c.config.OnComplete(ctx, c.sessionID, rec)
			}
		}),
	)
	if err != nil {
		return err
	}
	c.wizard = wz
	c.sync()
	return nil
}

// Wizard returns the hosted step controller.
func (c *Component) Wizard() *wizard.Controller[profile.Record] {
	return c.wizard
}

// Snapshot captures the wizard state for persistence.
func (c *Component) Snapshot() wizard.Snapshot[profile.Record] {
	return c.wizard.Snapshot()
}

// Restore replaces the wizard state with a saved snapshot. Images whose
// previews are gone from the cache are dropped.
func (c *Component) Restore(s wizard.Snapshot[profile.Record]) {
	c.wizard.Restore(s)
	if c.config.Stager != nil && c.config.Stager.Cache() != nil {
		cache := c.config.Stager.Cache()
		c.wizard.Update(func(r *profile.Record) {
			if r.ProfileImage != nil && !cache.Contains(r.ProfileImage.ID) {
				r.ProfileImage = nil
			}
			kept := r.Gallery[:0]
			for _, ref := range r.Gallery {
				if cache.Contains(ref.ID) {
					kept = append(kept, ref)
				}
			}
			r.Gallery = kept
		})
	}
	c.sync()
}

// DrainCommands forwards the viewport's queued client commands.
func (c *Component) DrainCommands() []core.Command {
	if src, ok := c.viewport.(core.CommandSource); ok {
		return src.DrainCommands()
	}
	return nil
}

func (c *Component) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	var err error
	switch event {
	case EventUpdate:
		err = c.update(str(payload, "field"), str(payload, "value"))
	case EventToggle:
		err = c.toggle(str(payload, "field"), str(payload, "value"))
	case EventNext:
		c.wizard.Next(ctx)
	case EventBack:
		c.wizard.Back()
	case EventRemoveMedia:
		err = c.removeMedia(str(payload, "slot"), str(payload, "index"))
	case EventViewport:
		w, _ := strconv.Atoi(str(payload, "width"))
		c.viewport.Resize(w)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	c.sync()
	return err
}

func (c *Component) HandleInfo(ctx context.Context, msg any) error {
	switch m := msg.(type) {
	case media.Upload:
		c.stage(m)
	case staged:
		c.applyStaged(m)
	case media.Result:
		c.applyResult(m)
	default:
		return fmt.Errorf("intake: unexpected info %T", msg)
	}
	c.sync()
	return nil
}

func (c *Component) Terminate(ctx context.Context, reason core.TerminateReason) error {
	if c.cancel != nil {
		c.cancel()
	}
	// Abandoned sessions free their previews; expired ones may resume.
	if reason == core.TerminateNormal && c.wizard != nil {
		rec := c.wizard.Record()
		if rec.ProfileImage != nil {
			c.release(*rec.ProfileImage)
		}
		for _, ref := range rec.Gallery {
			c.release(ref)
		}
	}
	return nil
}

func (c *Component) update(field, value string) error {
	value, cleanErr := Sanitize(c.config.Policy, value)
	var ok bool
	c.wizard.Update(func(r *profile.Record) {
		ok = r.SetText(field, value)
	})
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	if cleanErr != nil {
		c.wizard.SetFieldError(field, TextMessage(cleanErr))
	} else if msg := c.wizard.Errors().Get(field); msg == MsgMarkupRemoved || msg == MsgTextTooLong {
		c.wizard.ClearFieldError(field)
	}
	return nil
}

func (c *Component) toggle(field, value string) error {
	var ok bool
	c.wizard.Update(func(r *profile.Record) {
		ok = r.Toggle(field, value)
	})
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// Sanitize strips markup from free text and bounds its length to
// MaxTextLength runes. The cleaned text is always returned; the error,
// ErrMarkupRemoved or ErrTextTooLong, tells the caller that it differs from
// what was typed so the field can say so.
func Sanitize(policy *bluemonday.Policy, value string) (string, error) {
	var err error
	clean := html.UnescapeString(policy.Sanitize(value))
	if clean != value {
		err = ErrMarkupRemoved
	}
	if utf8.RuneCountInString(clean) > MaxTextLength {
		clean = string([]rune(clean)[:MaxTextLength])
		if err == nil {
			err = ErrTextTooLong
		}
	}
	return clean, err
}

// TextMessage returns the field message for a Sanitize error.
func TextMessage(err error) string {
	switch {
	case errors.Is(err, ErrMarkupRemoved):
		return MsgMarkupRemoved
	case errors.Is(err, ErrTextTooLong):
		return MsgTextTooLong
	default:
		return ""
	}
}

func (c *Component) removeMedia(kind, index string) error {
	slot, err := media.ParseSlot(kind, index)
	if err != nil {
		return err
	}
	var removed media.Reference
	c.wizard.Update(func(r *profile.Record) {
		removed, err = r.RemoveMedia(slot)
	})
	if err != nil {
		return err
	}
	c.release(removed)
	return nil
}

// stage starts a background staging of u. A newer upload to the same slot
// supersedes this one; gallery appends never supersede each other.
func (c *Component) stage(u media.Upload) {
	field := u.Slot.FieldKey()
	if c.config.Stager == nil {
		c.wizard.SetFieldError(field, media.Message(errors.New("no stager")))
		return
	}

	rec := c.wizard.Record()
	c.token++
	key := u.Slot.Key()
	if u.Slot.Kind == media.SlotGallery && u.Slot.Index >= rec.Gallery.Len() {
		if rec.Gallery.Len()+c.pendingAppends() >= media.GalleryCapacity {
			c.wizard.SetFieldError(field, media.Message(media.ErrGalleryFull))
			return
		}
		key = "gallery+" + strconv.FormatUint(c.token, 10)
	}
	if err := c.config.Stager.Validate(u.File); err != nil {
		c.wizard.SetFieldError(field, media.Message(err))
		return
	}

	token := c.token
	c.pending[key] = pendingUpload{slot: u.Slot, token: token}
	results := c.config.Stager.StageAsync(c.ctx, u.Slot, u.File)
	go func() {
		for res := range results {
			if !c.Post(staged{key: key, token: token, result: res}) && res.OK() {
				c.release(res.Reference)
			}
		}
	}()
	c.logger.Debug("staging image", logging.String("slot", u.Slot.String()), logging.String("file", u.File.Name))
}

func (c *Component) pendingAppends() int {
	n := 0
	for key := range c.pending {
		if strings.HasPrefix(key, "gallery+") {
			n++
		}
	}
	return n
}

func (c *Component) applyStaged(m staged) {
	current, ok := c.pending[m.key]
	if !ok || current.token != m.token {
		if m.result.OK() {
			c.release(m.result.Reference)
		}
		c.logger.Debug("discarding superseded staging result", logging.String("slot", m.result.Slot.String()))
		return
	}
	delete(c.pending, m.key)
	c.applyResult(m.result)
}

func (c *Component) applyResult(res media.Result) {
	field := res.Slot.FieldKey()
	if !res.OK() {
		c.wizard.SetFieldError(field, media.Message(res.Err))
		return
	}

	var (
		old media.Reference
		err error
	)
	c.wizard.Update(func(r *profile.Record) {
		old, err = r.PlaceMedia(res.Slot, res.Reference)
	})
	if err != nil {
		c.release(res.Reference)
		c.wizard.SetFieldError(field, media.Message(err))
		return
	}
	c.release(old)
	c.wizard.ClearFieldError(field)
}

func (c *Component) release(ref media.Reference) {
	if ref.ID != "" && c.config.Stager != nil {
		c.config.Stager.Release(ref)
	}
}

// pendingSlots returns the keys of uploads still staging, sorted.
func (c *Component) pendingSlots() []string {
	keys := make([]string, 0, len(c.pending))
	for key := range c.pending {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// sync mirrors the wizard state into assigns so the session re-renders
// only after a visible change.
func (c *Component) sync() {
	a := c.Assigns()
	a.Set("step", c.wizard.Step())
	a.Set("completed", c.wizard.Completed())
	a.Set("record", c.wizard.Record().Clone())
	a.Set("errors", c.wizard.Errors().Clone())
	a.Set("pending", c.pendingSlots())
	a.Set("compact", c.viewport.Compact())
}

func str(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
