// Package core provides the component model the live session server drives.
package core

import (
	"context"
	"io"
)

// Component is a stateful server-side view. A session calls its methods from
// a single goroutine, so implementations need no locking of their own.
type Component interface {
	// Name identifies the component type in logs and snapshots.
	Name() string

	// Mount is called once when the session starts or resumes.
	Mount(ctx context.Context, params Params, session Session) error

	// Render returns the current HTML of the component.
	Render(ctx context.Context) Renderer

	// HandleEvent processes a client event such as a field update or a
	// button press.
	HandleEvent(ctx context.Context, event string, payload map[string]any) error

	// HandleInfo processes server-side messages, e.g. background results
	// posted through the component's mailbox.
	HandleInfo(ctx context.Context, msg any) error

	// Terminate is called when the session ends.
	Terminate(ctx context.Context, reason TerminateReason) error
}

// Renderer writes HTML.
type Renderer interface {
	Render(ctx context.Context, w io.Writer) error
}

// RendererFunc is an adapter to allow ordinary functions to be used as Renderers.
type RendererFunc func(ctx context.Context, w io.Writer) error

func (f RendererFunc) Render(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// Params contains query parameters of the connection.
type Params map[string]string

// Get returns a parameter value or empty string if not found.
func (p Params) Get(key string) string {
	return p[key]
}

// GetDefault returns a parameter value or the default if not found.
func (p Params) GetDefault(key, defaultValue string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return defaultValue
}

// Session contains data the HTTP layer hands to Mount.
type Session map[string]any

// Get returns a session value.
func (s Session) Get(key string) any {
	return s[key]
}

// GetString returns a session value as string.
func (s Session) GetString(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// TerminateReason indicates why a component is being terminated.
type TerminateReason int

const (
	// TerminateNormal indicates clean disconnection.
	TerminateNormal TerminateReason = iota
	// TerminateShutdown indicates server shutdown.
	TerminateShutdown
	// TerminateError indicates termination due to an error.
	TerminateError
	// TerminateTimeout indicates termination due to inactivity.
	TerminateTimeout
)

func (r TerminateReason) String() string {
	switch r {
	case TerminateNormal:
		return "normal"
	case TerminateShutdown:
		return "shutdown"
	case TerminateError:
		return "error"
	case TerminateTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Mailbox delivers messages to a component's HandleInfo on the session
// goroutine. Post reports false when the session is gone.
type Mailbox interface {
	Post(msg any) bool
}

// MailboxFunc adapts a function to Mailbox.
type MailboxFunc func(msg any) bool

func (f MailboxFunc) Post(msg any) bool {
	return f(msg)
}

// MailboxSetter is implemented by components that post to themselves.
type MailboxSetter interface {
	SetMailbox(Mailbox)
}

// BaseComponent provides default implementations for Component methods.
// Embed it to avoid implementing unused methods.
type BaseComponent struct {
	mailbox Mailbox
	assigns *Assigns
}

// SetMailbox sets the component mailbox (called by the session).
func (bc *BaseComponent) SetMailbox(m Mailbox) {
	bc.mailbox = m
}

// Post sends msg to this component's HandleInfo. Without a mailbox the
// message is dropped.
func (bc *BaseComponent) Post(msg any) bool {
	if bc.mailbox == nil {
		return false
	}
	return bc.mailbox.Post(msg)
}

// Assigns returns the component's assigns store.
func (bc *BaseComponent) Assigns() *Assigns {
	if bc.assigns == nil {
		bc.assigns = NewAssigns()
	}
	return bc.assigns
}

// Name returns an empty string (override in your component).
func (bc *BaseComponent) Name() string {
	return ""
}

// Mount does nothing by default.
func (bc *BaseComponent) Mount(ctx context.Context, params Params, session Session) error {
	return nil
}

// HandleEvent does nothing by default.
func (bc *BaseComponent) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	return nil
}

// HandleInfo does nothing by default.
func (bc *BaseComponent) HandleInfo(ctx context.Context, msg any) error {
	return nil
}

// Terminate does nothing by default.
func (bc *BaseComponent) Terminate(ctx context.Context, reason TerminateReason) error {
	return nil
}

// AssignsProvider is implemented by components whose render depends only on
// their assigns. Sessions skip re-rendering when nothing changed.
type AssignsProvider interface {
	Assigns() *Assigns
}

// Command is a presentation side effect the client performs, such as
// resetting the scroll position.
type Command struct {
	Name string
	Args map[string]any
}

// CommandSource is implemented by components that queue client commands.
// Sessions drain the queue after every handled message.
type CommandSource interface {
	DrainCommands() []Command
}
