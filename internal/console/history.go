package console

import (
	"os"
	"strings"

	"firestige.xyz/ttyscope/internal/log"
)

// maxHistoryLines caps the persisted history file.
const maxHistoryLines = 1000

// history keeps typed command lines across sessions. Persistence failures
// are logged and otherwise ignored; history is a convenience, not state.
type history struct {
	path  string
	lines []string
}

func newHistory(path string) *history {
	return &history{path: path}
}

func (h *history) load() {
	if h.path == "" {
		return
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.GetLogger().WithError(err).Debug("history load failed")
		}
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			h.lines = append(h.lines, line)
		}
	}
}

func (h *history) append(line string) {
	h.lines = append(h.lines, line)
}

func (h *history) save() {
	if h.path == "" {
		return
	}
	lines := h.lines
	if len(lines) > maxHistoryLines {
		lines = lines[len(lines)-maxHistoryLines:]
	}
	data := strings.Join(lines, "\n")
	if len(lines) > 0 {
		data += "\n"
	}
	if err := os.WriteFile(h.path, []byte(data), 0600); err != nil {
		log.GetLogger().WithError(err).Debug("history save failed")
	}
}
