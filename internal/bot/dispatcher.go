package bot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Proton-105/pydt-bot/internal/bot/handlers"
	"github.com/Proton-105/pydt-bot/internal/domain"
)

// Dispatcher routes normalized updates to command handlers through a
// middleware chain.
type Dispatcher struct {
	mu          sync.RWMutex
	commands    map[string]handlers.Handler
	middlewares []handlers.Middleware
	log         *slog.Logger
}

// NewDispatcher creates a Dispatcher with an empty handlers registry.
func NewDispatcher(log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		commands: make(map[string]handlers.Handler),
		log:      log,
	}
}

// RegisterCommand registers a handler for a bot command.
func (d *Dispatcher) RegisterCommand(cmd string, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[cmd] = h
}

// Use appends a middleware to the chain. The first registered middleware is
// the outermost.
func (d *Dispatcher) Use(mw handlers.Middleware) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.middlewares = append(d.middlewares, mw)
}

// Dispatch runs the handler for the update's command. Updates that carry no
// known command are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, u domain.Update) error {
	cmd := u.Command()
	if cmd == "" {
		return nil
	}

	handler := d.getCommandHandler(cmd)
	if handler == nil {
		d.log.Debug("no handler registered for command",
			slog.String("command", cmd),
			slog.Int64("user_id", u.SenderID),
		)
		return nil
	}

	return d.applyMiddlewares(handler)(ctx, u)
}

func (d *Dispatcher) getCommandHandler(cmd string) handlers.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.commands[cmd]
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (d *Dispatcher) applyMiddlewares(h handlers.Handler) handlers.Handler {
	d.mu.RLock()
	middlewares := make([]handlers.Middleware, len(d.middlewares))
	copy(middlewares, d.middlewares)
	d.mu.RUnlock()

	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}
