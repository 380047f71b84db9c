package state

import (
	cosmoslog "cosmossdk.io/log"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// treeLogger routes iavl logs into the node logger. iavl debug output is
// verbose, so it is only forwarded when verbose is set.
type treeLogger struct {
	logger  cmtlog.Logger
	verbose bool
}

var _ cosmoslog.Logger = treeLogger{}

func newTreeLogger(lg cmtlog.Logger, verbose bool) cosmoslog.Logger {
	return treeLogger{logger: lg.With("module", "iavl"), verbose: verbose}
}

func (l treeLogger) Info(msg string, keyVals ...any) {
	l.logger.Info(msg, keyVals...)
}

func (l treeLogger) Warn(msg string, keyVals ...any) {
	l.logger.Info(msg, append(keyVals, "level", "warn")...)
}

func (l treeLogger) Error(msg string, keyVals ...any) {
	l.logger.Error(msg, keyVals...)
}

func (l treeLogger) Debug(msg string, keyVals ...any) {
	if l.verbose {
		l.logger.Debug(msg, keyVals...)
	}
}

func (l treeLogger) With(keyVals ...any) cosmoslog.Logger {
	return treeLogger{logger: l.logger.With(keyVals...), verbose: l.verbose}
}

func (l treeLogger) Impl() any {
	return l.logger
}
