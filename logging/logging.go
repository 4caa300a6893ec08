// Package logging builds the structured loggers shared by the server and tools.
package logging

import (
	"io"
	"os"

	"github.com/inconshreveable/log15/v3"
)

// New returns a logfmt logger writing to w. Debug records are dropped unless debug is set.
func New(w io.Writer, debug bool, ctx ...interface{}) log15.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl := log15.LvlInfo
	if debug {
		lvl = log15.LvlDebug
	}

	logger := log15.New(ctx...)
	logger.SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(w, log15.LogfmtFormat())))
	return logger
}

// Discard returns a logger that drops every record
func Discard() log15.Logger {
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())
	return logger
}

// OrDiscard returns l, or a discarding logger when l is nil
func OrDiscard(l log15.Logger) log15.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
