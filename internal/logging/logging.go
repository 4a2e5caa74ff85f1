// Package logging wires a single default go-ethereum log.Logger for both
// espresso-persistence binaries: a colored terminal handler when stderr is
// a TTY (detected via mattn/go-isatty), a plain one otherwise, following
// the same NewTerminalHandler/NewGlogHandler idiom go-ethereum itself uses
// for its CLI tools.
package logging

import (
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
)

// Init configures and installs the process-wide default logger at the
// given verbosity (log.LevelTrace .. log.LevelCrit) and returns it.
func Init(level slog.Level) log.Logger {
	useColor := isatty.IsTerminal(os.Stderr.Fd())
	handler := log.NewTerminalHandler(os.Stderr, useColor)
	glog := log.NewGlogHandler(handler)
	glog.Verbosity(level)
	log.SetDefault(log.NewLogger(glog))
	return log.Root()
}
