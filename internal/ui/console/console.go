// Package console is the line-oriented surface: a readline prompt that
// accepts commands and prints page text as narration moves on.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/readaloud/internal/app/display"
	"github.com/osa030/readaloud/internal/app/playback"
)

// App is what the console drives.
type App interface {
	Select(path string) error
	Play() error
	Pause() error
	Stop() error
	Next() error
	Prev() error
	SetRate(rate int) int
	Faster() int
	Slower() int
	Status() playback.Status
	Attach(surface display.Surface) (string, error)
	Detach(id string)
}

// Options configures the console.
type Options struct {
	Extension string // Documents offered by tab completion
	Prompt    string
}

// Run reads commands until quit, end of input or ctx is done.
func Run(ctx context.Context, app App, opts Options) error {
	if opts.Prompt == "" {
		opts.Prompt = "readaloud> "
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:       opts.Prompt,
		AutoComplete: completer(opts.Extension),
	})
	if err != nil {
		return errors.Wrap(err, "failed to start console")
	}
	defer rl.Close()

	surface := NewSurface(rl.Stdout())
	id, err := app.Attach(surface)
	if err != nil {
		return err
	}
	defer app.Detach(id)

	stop := context.AfterFunc(ctx, func() { _ = rl.Close() })
	defer stop()

	fmt.Fprint(rl.Stdout(), "type help for commands\n")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "read command")
		}

		cmd, err := Parse(line)
		if err != nil {
			surface.Printf("error: %v\n", err)
			continue
		}
		quit, err := Execute(app, cmd, surface)
		if err != nil {
			zlog.Debug().Msgf("console: command failed: command=%s error=%v", cmd.Name, err)
			surface.Printf("error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Execute runs a parsed command. It reports whether the console should exit.
func Execute(app App, cmd Command, s *Surface) (bool, error) {
	switch cmd.Name {
	case "":
		return false, nil
	case "open":
		return false, app.Select(expandHome(cmd.Arg))
	case "play":
		return false, app.Play()
	case "pause":
		return false, app.Pause()
	case "stop":
		return false, app.Stop()
	case "next":
		return false, app.Next()
	case "prev":
		return false, app.Prev()
	case "rate":
		s.Printf("rate: %d wpm\n", app.SetRate(cmd.Rate))
	case "faster":
		s.Printf("rate: %d wpm\n", app.Faster())
	case "slower":
		s.Printf("rate: %d wpm\n", app.Slower())
	case "status":
		s.Printf("%s\n", formatStatus(app.Status()))
	case "help":
		s.Printf("%s", helpText())
	case "quit":
		return true, nil
	default:
		return false, errors.Wrapf(ErrUnknownCommand, "%q", cmd.Name)
	}
	return false, nil
}

// Surface prints updates through readline's stdout, which redraws the
// prompt after each write.
type Surface struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSurface creates a surface writing to w.
func NewSurface(w io.Writer) *Surface {
	return &Surface{w: w}
}

// Render implements display.Surface.
func (s *Surface) Render(u display.Update) error {
	text := formatUpdate(u)
	if text == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, text)
	return err
}

// Printf writes a line of command output.
func (s *Surface) Printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

func formatUpdate(u display.Update) string {
	st := u.Status
	name := filepath.Base(st.Path)
	switch u.Kind {
	case playback.EventDocumentOpened:
		return fmt.Sprintf("opened %s (%d pages)\n", name, st.Pages)
	case playback.EventDocumentReloaded:
		return fmt.Sprintf("reloaded %s (%d pages)\n", name, st.Pages)
	case playback.EventPageShown:
		return fmt.Sprintf("--- page %d/%d ---\n%s\n", st.Page+1, st.Pages, strings.TrimRight(st.Text, "\n"))
	case playback.EventStateChanged:
		return fmt.Sprintf("state: %s\n", st.State)
	case playback.EventFinished:
		return fmt.Sprintf("finished reading %s\n", name)
	case playback.EventFailed:
		if u.Err == nil {
			return ""
		}
		return fmt.Sprintf("error: %v\n", u.Err)
	default:
		return ""
	}
}

func formatStatus(st playback.Status) string {
	if !st.HasDocument() {
		return fmt.Sprintf("state: %s, no document, rate: %d wpm", st.State, st.Rate)
	}
	s := fmt.Sprintf("state: %s, file: %s, page: %d/%d, rate: %d wpm",
		st.State, st.Path, st.Page+1, st.Pages, st.Rate)
	if st.Err != nil {
		s += fmt.Sprintf(", last error: %v", st.Err)
	}
	return s
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
