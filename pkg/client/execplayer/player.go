// Package execplayer implements the client audio [Engine] by piping each
// buffer to an external player process over stdin, e.g.:
//
//	eng, err := execplayer.New("mpg123 -q -")
//	eng, err := execplayer.New("ffplay -autoexit -nodisp -loglevel quiet -")
//
// One process is spawned per buffer; the dispatcher's queue discipline
// guarantees processes never overlap.
package execplayer

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/MrWong99/tutorvox/pkg/client"
)

// Engine plays audio buffers through an external command.
type Engine struct {
	cmd []string

	mu      sync.Mutex
	current *playback
	closed  bool
}

// Compile-time assertion that Engine satisfies the client.Engine interface.
var _ client.Engine = (*Engine)(nil)

// New parses the player command line and returns a ready engine. The command
// must read audio from stdin.
func New(command string) (*Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("execplayer: parse command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("execplayer: command is empty")
	}
	return &Engine{cmd: args}, nil
}

// Play spawns the player process and streams data to its stdin. The returned
// playback completes when the process exits.
func (e *Engine) Play(data []byte, format string, sampleRate int) (client.Playback, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("execplayer: engine is closed")
	}

	cmd := exec.Command(e.cmd[0], e.cmd[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("execplayer: stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("execplayer: start %q: %w", e.cmd[0], err)
	}

	pb := &playback{cmd: cmd, done: make(chan struct{})}
	e.current = pb

	go func() {
		defer close(pb.done)

		_, _ = stdin.Write(data)
		stdin.Close()
		// A killed process returns a non-nil error; that is the normal Stop
		// path, not a failure worth surfacing.
		_ = cmd.Wait()
	}()

	return pb, nil
}

// Close stops any active playback. The engine cannot be reused afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	cur := e.current
	e.closed = true
	e.mu.Unlock()

	if cur != nil {
		cur.Stop()
	}
	return nil
}

// playback is one player process.
type playback struct {
	cmd      *exec.Cmd
	done     chan struct{}
	stopOnce sync.Once
}

// Done implements client.Playback.
func (p *playback) Done() <-chan struct{} { return p.done }

// Stop implements client.Playback by killing the player process.
func (p *playback) Stop() {
	p.stopOnce.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
	})
}
