package utils

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// WithSpinner runs fn while a spinner turns on stderr. The spinner is only
// shown when stderr is a terminal and debug logging is off. Log lines
// written while it runs clear the spinner line first and redraw it after.
func WithSpinner(message string, fn func() error) error {
	if !term.IsTerminal(int(os.Stderr.Fd())) || GetLogger().IsLevelEnabled(logrus.DebugLevel) {
		return fn()
	}
	spin := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriterFile(os.Stderr))
	spin.Suffix = " " + message
	return runWithSpinner(GetLogger(), spin, fn)
}

func runWithSpinner(logger *logrus.Logger, spin *spinner.Spinner, fn func() error) error {
	out := logger.Out
	logger.SetOutput(&spinnerPauseWriter{spin: spin, out: out})
	spin.Start()
	defer func() {
		spin.Stop()
		logger.SetOutput(out)
	}()
	return fn()
}

// spinnerPauseWriter stops spin around each write to out. logrus holds its
// own lock while writing, so writes never overlap.
type spinnerPauseWriter struct {
	spin *spinner.Spinner
	out  io.Writer
}

func (w *spinnerPauseWriter) Write(p []byte) (int, error) {
	if !w.spin.Active() {
		return w.out.Write(p)
	}
	w.spin.Stop()
	defer w.spin.Start()
	return w.out.Write(p)
}
