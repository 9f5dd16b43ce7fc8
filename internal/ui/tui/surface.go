// Package tui is the full-screen terminal surface: a control panel and a
// scrollable panel showing the text of the current page.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"

	"github.com/osa030/readaloud/internal/app/display"
)

// App is what the terminal UI drives.
type App interface {
	Controls
	Attach(surface display.Surface) (string, error)
	Detach(id string)
}

// updateMsg carries a display update into the bubbletea loop.
type updateMsg display.Update

// attachedMsg reports the result of subscribing the surface.
type attachedMsg struct {
	id  string
	err error
}

// Surface forwards updates to the running program. Program.Send queues the
// message on the program's own loop, so Render never touches the model.
type Surface struct {
	program *tea.Program
}

// Render implements display.Surface.
func (s *Surface) Render(u display.Update) error {
	if s.program == nil {
		return errors.New("terminal program not started")
	}
	s.program.Send(updateMsg(u))
	return nil
}

// Run shows the terminal UI until the user quits or ctx is done.
func Run(ctx context.Context, app App, opts Options) error {
	surface := &Surface{}
	model := New(app, opts, attach(app, surface))
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	surface.program = program

	final, err := program.Run()
	if m, ok := final.(Model); ok && m.subscription != "" {
		app.Detach(m.subscription)
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "terminal ui failed")
	}
	return nil
}

// attach subscribes the surface once the program loop is running.
func attach(app App, surface *Surface) tea.Cmd {
	return func() tea.Msg {
		id, err := app.Attach(surface)
		return attachedMsg{id: id, err: err}
	}
}
