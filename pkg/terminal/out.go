package terminal

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// getColorableWriter returns the writer the terminal prints to and
// whether it understands ANSI escape sequences.
func getColorableWriter() (io.Writer, bool) {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return os.Stdout, false
	}
	if strings.ToLower(os.Getenv("TERM")) == "dumb" {
		return os.Stdout, false
	}
	return colorable.NewColorableStdout(), true
}
