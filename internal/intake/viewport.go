package intake

import (
	"github.com/kindredhq/intake/pkg/core"
)

// CompactWidth is the widest viewport, in CSS pixels, laid out as compact.
const CompactWidth = 640

// Viewport is the presentation capability the adapter queries for device
// signals and asks for cosmetic effects. Step logic never touches it.
type Viewport interface {
	// Compact reports whether the client has a narrow screen.
	Compact() bool

	// Resize records the client's reported width.
	Resize(width int)

	// ScrollToTop resets the client's scroll position.
	ScrollToTop()
}

// ClientViewport tracks the width a browser reports and turns effects into
// client commands.
type ClientViewport struct {
	width    int
	commands []core.Command
}

// NewClientViewport returns a viewport with no known width, treated as wide.
func NewClientViewport() *ClientViewport {
	return &ClientViewport{}
}

func (v *ClientViewport) Compact() bool {
	return v.width > 0 && v.width <= CompactWidth
}

func (v *ClientViewport) Resize(width int) {
	if width > 0 {
		v.width = width
	}
}

func (v *ClientViewport) ScrollToTop() {
	v.commands = append(v.commands, core.Command{Name: CommandScrollTop})
}

// DrainCommands returns and forgets the queued commands.
func (v *ClientViewport) DrainCommands() []core.Command {
	out := v.commands
	v.commands = nil
	return out
}
