package shim

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

var (
	// ErrUnknownTrap is returned by Call for a name that has no handler
	ErrUnknownTrap = errors.New("no handler is installed for this trap")
	// ErrDuplicateTrap is returned by NewTable when two definitions claim the same name
	ErrDuplicateTrap = errors.New("trap name is defined more than once")
)

// Handler implements one emulated API. It reads its arguments from args, performs the operation
// against the session and returns the emulated result. A non-nil error is fatal to the session.
type Handler func(s *Session, args ArgReader) (Result, error)

// Def binds a Handler to an API name and any alternate names it is also installed under
type Def struct {
	Name    string
	Aliases []string
	Handler Handler
}

// Table maps API names to handlers. It is built once and never changes afterwards, so one Table
// may serve any number of sessions.
type Table struct {
	handlers map[string]Handler
}

// NewTable builds a Table from defs. Every name and alias must be unique across all of defs.
func NewTable(defs ...Def) (*Table, error) {
	t := &Table{handlers: make(map[string]Handler)}

	for _, def := range defs {
		if def.Handler == nil {
			return nil, errors.Newf("trap %q has no handler", def.Name)
		}

		names := append([]string{def.Name}, def.Aliases...)
		for _, name := range names {
			if name == "" {
				return nil, errors.Newf("trap %q has an empty alias", def.Name)
			}
			if _, exists := t.handlers[name]; exists {
				return nil, errors.Wrapf(ErrDuplicateTrap, "%q", name)
			}
			t.handlers[name] = def.Handler
		}
	}

	return t, nil
}

// Lookup returns the handler installed under name
func (t *Table) Lookup(name string) (Handler, bool) {
	handler, ok := t.handlers[name]
	return handler, ok
}

// Names returns every installed name in sorted order
func (t *Table) Names() []string {
	names := maps.Keys(t.handlers)
	slices.Sort(names)
	return names
}

// Call runs the handler installed under name against s. Handler errors are returned as they are.
func (t *Table) Call(s *Session, name string, args ArgReader) (Result, error) {
	handler, ok := t.handlers[name]
	if !ok {
		return Void(), errors.Wrapf(ErrUnknownTrap, "%q", name)
	}

	result, err := handler(s, args)
	if err != nil {
		return Void(), err
	}

	s.logger.Debug("Shim::"+name, slog.String("result", result.String()))
	return result, nil
}
