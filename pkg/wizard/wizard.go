// Package wizard implements a sequential multi-step form controller.
//
// A Controller owns the current step index, the accumulated record and the
// error map of the last validation attempt. Next validates the current step
// and advances only when it is valid; on the last step it completes and hands
// the record to the completion callback exactly once. Back always retreats one
// step and never goes below the first.
//
// A Controller is not safe for concurrent use. Hosts serialize access, the
// same way a component's event loop does.
package wizard

import (
	"context"
	"errors"

	"github.com/kindredhq/intake/pkg/forms"
	"github.com/kindredhq/intake/pkg/logging"
)

// ErrNoSteps is returned when a controller is built without steps.
var ErrNoSteps = errors.New("wizard: at least one step is required")

// Step is one page of the wizard, gated by its own validation rules.
type Step[R any] struct {
	Name  string
	Title string

	// Fields describe the inputs adapters render for this step.
	Fields []forms.Field

	// Validate returns an entry for every field of this step that fails.
	// A nil Validate accepts everything.
	Validate func(R) forms.ErrorMap
}

// Outcome is the result of a Next call.
type Outcome int

const (
	// Stayed means validation failed and the step did not change.
	Stayed Outcome = iota
	// Advanced means the controller moved to the following step.
	Advanced
	// Completed means the last step validated and the callback ran.
	Completed
)

func (o Outcome) String() string {
	switch o {
	case Stayed:
		return "stayed"
	case Advanced:
		return "advanced"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Transition describes a successful step change. To is zero when the
// transition completed the wizard.
type Transition struct {
	From      int
	To        int
	Completed bool
}

// CompletionFunc receives the final record once the last step validates.
// What happens next (persistence, navigation) is the host's concern.
type CompletionFunc[R any] func(ctx context.Context, record R)

// Controller drives a wizard over record type R.
type Controller[R any] struct {
	steps     []Step[R]
	index     int
	record    R
	errors    forms.ErrorMap
	completed bool

	onComplete   CompletionFunc[R]
	onTransition func(Transition)
	clone        func(R) R
	logger       logging.Logger
}

// Option configures a controller.
type Option[R any] func(*Controller[R])

// WithCompletion sets the completion callback.
func WithCompletion[R any](fn CompletionFunc[R]) Option[R] {
	return func(c *Controller[R]) {
		c.onComplete = fn
	}
}

// WithTransitionHook is called after every successful transition, e.g. to
// reset the scroll position.
func WithTransitionHook[R any](fn func(Transition)) Option[R] {
	return func(c *Controller[R]) {
		c.onTransition = fn
	}
}

// WithCloner sets how the record is copied before it is handed to the
// completion callback or a snapshot. The default is a plain value copy.
func WithCloner[R any](fn func(R) R) Option[R] {
	return func(c *Controller[R]) {
		c.clone = fn
	}
}

// WithLogger sets the controller logger.
func WithLogger[R any](logger logging.Logger) Option[R] {
	return func(c *Controller[R]) {
		c.logger = logger
	}
}

// New creates a controller positioned on the first step with initial as the
// record. Pass a partially filled record to pre-fill answers.
func New[R any](steps []Step[R], initial R, opts ...Option[R]) (*Controller[R], error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	c := &Controller[R]{
		steps:  append([]Step[R](nil), steps...),
		index:  1,
		record: initial,
		errors: forms.NewErrorMap(),
		clone:  func(r R) R { return r },
		logger: logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Step returns the current 1-based step index.
func (c *Controller[R]) Step() int {
	return c.index
}

// Total returns the number of steps.
func (c *Controller[R]) Total() int {
	return len(c.steps)
}

// Current returns the definition of the current step.
func (c *Controller[R]) Current() Step[R] {
	return c.steps[c.index-1]
}

// Steps returns all step definitions.
func (c *Controller[R]) Steps() []Step[R] {
	return c.steps
}

// Completed reports whether the wizard reached its terminal state.
func (c *Controller[R]) Completed() bool {
	return c.completed
}

// Record returns the live record. Adapters mutate it in place.
func (c *Controller[R]) Record() *R {
	return &c.record
}

// Update applies fn to the live record.
func (c *Controller[R]) Update(fn func(*R)) {
	fn(&c.record)
}

// Errors returns the error map of the last validation attempt.
func (c *Controller[R]) Errors() forms.ErrorMap {
	return c.errors
}

// SetFieldError attaches a message to one field without running validation.
// Adapters use it for media rejections.
func (c *Controller[R]) SetFieldError(field, message string) {
	c.errors.Set(field, message)
}

// ClearFieldError removes the message attached to field.
func (c *Controller[R]) ClearFieldError(field string) {
	delete(c.errors, field)
}

// Validate runs the current step's rules without changing state.
func (c *Controller[R]) Validate() forms.ErrorMap {
	return c.validate(c.index)
}

func (c *Controller[R]) validate(index int) forms.ErrorMap {
	step := c.steps[index-1]
	if step.Validate == nil {
		return forms.NewErrorMap()
	}
	errs := step.Validate(c.record)
	if errs == nil {
		return forms.NewErrorMap()
	}
	return errs
}

// Next validates the current step. On success it advances, or completes on
// the last step; on failure it stays and publishes the error map.
func (c *Controller[R]) Next(ctx context.Context) Outcome {
	if c.completed {
		return Completed
	}

	from := c.index
	errs := c.validate(from)
	c.errors = errs
	if !errs.Empty() {
		c.logger.Debug("wizard step invalid",
			logging.Int("step", from),
			logging.Any("fields", errs.Fields()),
		)
		return Stayed
	}

	if from == len(c.steps) {
		c.completed = true
		c.logger.Debug("wizard completed", logging.Int("steps", len(c.steps)))
		c.notify(Transition{From: from, Completed: true})
		if c.onComplete != nil {
			c.onComplete(ctx, c.clone(c.record))
		}
		return Completed
	}

	c.index++
	c.logger.Debug("wizard advanced", logging.Int("from", from), logging.Int("to", c.index))
	c.notify(Transition{From: from, To: c.index})
	return Advanced
}

// Back moves to the previous step. It is a no-op on the first step and
// after completion. It reports whether the step changed.
func (c *Controller[R]) Back() bool {
	if c.completed || c.index <= 1 {
		return false
	}
	from := c.index
	c.index--
	c.errors = forms.NewErrorMap()
	c.logger.Debug("wizard went back", logging.Int("from", from), logging.Int("to", c.index))
	c.notify(Transition{From: from, To: c.index})
	return true
}

func (c *Controller[R]) notify(t Transition) {
	if c.onTransition != nil {
		c.onTransition(t)
	}
}

// Snapshot is a serializable copy of controller state.
type Snapshot[R any] struct {
	Step      int            `json:"step" msgpack:"step"`
	Record    R              `json:"record" msgpack:"record"`
	Errors    forms.ErrorMap `json:"errors,omitempty" msgpack:"errors,omitempty"`
	Completed bool           `json:"completed" msgpack:"completed"`
}

// Snapshot captures the current state.
func (c *Controller[R]) Snapshot() Snapshot[R] {
	return Snapshot[R]{
		Step:      c.index,
		Record:    c.clone(c.record),
		Errors:    c.errors.Clone(),
		Completed: c.completed,
	}
}

// Restore replaces the controller state with s. The step is clamped to the
// valid range. Restoring never invokes the completion callback.
func (c *Controller[R]) Restore(s Snapshot[R]) {
	step := s.Step
	if step < 1 {
		step = 1
	}
	if step > len(c.steps) {
		step = len(c.steps)
	}
	c.index = step
	c.record = c.clone(s.Record)
	c.errors = s.Errors.Clone()
	c.completed = s.Completed
}
