package clipboard

import (
	"sync"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"

	"github.com/zhouzirui/z-ask/backend/internal/service/chat"
)

// System writes to the operating system clipboard.
type System struct{}

// Available reports whether a clipboard utility was found.
func (System) Available() bool {
	return !clipboard.Unsupported
}

func (System) WriteText(text string) error {
	if clipboard.Unsupported {
		return errors.New("no clipboard utility available on this system")
	}
	return errors.Wrap(clipboard.WriteAll(text), "write system clipboard")
}

// Memory keeps the last written text. Used by headless servers and tests.
type Memory struct {
	mu   sync.RWMutex
	text string
}

func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	return nil
}

// Text returns the last written text.
func (m *Memory) Text() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.text
}

// Detect returns the system clipboard when one is usable, else an in-memory
// one. The flag reports whether the system clipboard was chosen.
func Detect() (chat.Clipboard, bool) {
	if (System{}).Available() {
		return System{}, true
	}
	return &Memory{}, false
}
