package state

import (
	"bytes"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
)

func TestTreeLogger(t *testing.T) {
	var buf bytes.Buffer
	base := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(&buf))

	lg := newTreeLogger(base, false).With("version", 3)
	lg.Debug("hidden")
	assert.Empty(t, buf.String())

	lg.Info("loaded")
	assert.Contains(t, buf.String(), "loaded")
	assert.Contains(t, buf.String(), "module=iavl")
	assert.Contains(t, buf.String(), "version=3")

	buf.Reset()
	newTreeLogger(base, true).Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
