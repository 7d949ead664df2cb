// Package control turns push-button presses into sampling-loop commands.
package control

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/airsense/internal/domain/model"
	"github.com/okian/airsense/pkg/logger"
)

// DefaultDebounce filters contact bounce on the button lines.
const DefaultDebounce = 30 * time.Millisecond

// Commander accepts operator commands. Both calls must not block.
type Commander interface {
	RequestRefresh(ctx context.Context) bool
	RequestReinitialize(ctx context.Context) bool
}

// Button binds a GPIO line to a command. Lines are active low.
type Button struct {
	Name     string
	Line     int
	Kind     model.CommandKind
	Debounce time.Duration
}

// Buttons owns the requested GPIO lines.
type Buttons struct {
	ctx    context.Context
	cmdr   Commander
	logger logger.Logger

	mu      sync.Mutex
	lines   []lineHandle
	presses map[model.CommandKind]int
}

// Option applies a configuration option to Buttons.
type Option func(*Buttons)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Buttons) {
		if l != nil {
			b.logger = l
		}
	}
}

// Open requests every button line on chip. Buttons with a negative line are
// skipped. On error every line opened so far is released.
func Open(ctx context.Context, chip string, buttons []Button, cmdr Commander, opts ...Option) (*Buttons, error) {
	b := &Buttons{
		ctx:     ctx,
		cmdr:    cmdr,
		logger:  logger.Get().Named("control"),
		presses: make(map[model.CommandKind]int),
	}
	for _, opt := range opts {
		opt(b)
	}

	for _, btn := range buttons {
		if btn.Line < 0 {
			continue
		}
		if btn.Debounce <= 0 {
			btn.Debounce = DefaultDebounce
		}
		kind := btn.Kind
		line, err := requestLine(chip, btn, func() { b.Press(kind) })
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("button %s on %s:%d: %w", btn.Name, chip, btn.Line, err)
		}
		b.lines = append(b.lines, line)
		b.logger.Info(ctx, "button ready",
			logger.String("button", btn.Name),
			logger.String("chip", chip),
			logger.Int("line", btn.Line),
			logger.String("command", kind.String()),
		)
	}
	if len(b.lines) == 0 {
		return nil, ErrNoButtons
	}
	return b, nil
}

// Press dispatches the command bound to a button.
func (b *Buttons) Press(kind model.CommandKind) bool {
	var ok bool
	switch kind {
	case model.CommandRefresh:
		ok = b.cmdr.RequestRefresh(b.ctx)
	case model.CommandReinitialize:
		ok = b.cmdr.RequestReinitialize(b.ctx)
	default:
		b.logger.Warn(b.ctx, "button bound to unknown command", logger.Int("kind", int(kind)))
		return false
	}

	b.mu.Lock()
	b.presses[kind]++
	b.mu.Unlock()

	if !ok {
		b.logger.Warn(b.ctx, "button press dropped", logger.String("command", kind.String()))
	}
	return ok
}

// Presses returns how often a command's button was pressed.
func (b *Buttons) Presses(kind model.CommandKind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.presses[kind]
}

// Close releases all lines.
func (b *Buttons) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var first error
	for _, l := range b.lines {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	b.lines = nil
	return first
}
