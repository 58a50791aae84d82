// Package logx builds the logger the player writes to. The player is
// a library living inside a host process, so logs go to a file rather
// than stderr; the default lands in the XDG state directory.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"
)

// New returns a logger writing to path, or to the state directory
// default when path is empty. An unwritable destination degrades to a
// silent logger instead of failing player creation.
func New(path, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	out, err := open(path)
	if err != nil {
		logger.SetOutput(io.Discard)
		return logger
	}
	logger.SetOutput(out)
	return logger
}

func open(path string) (io.Writer, error) {
	if path == "" {
		p, err := xdg.StateFile(filepath.Join("amlview", "amlview.log"))
		if err != nil {
			return nil, fmt.Errorf("state dir: %w", err)
		}
		path = p
	} else if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("log dir: %w", err)
		}
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}
