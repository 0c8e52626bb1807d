package main

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestCommandFlags(t *testing.T) {
	t.Run("flags are bound", func(t *testing.T) {
		v := newViper()
		cmd := newCommand(v)
		assert.NoError(t, cmd.ParseFlags([]string{"--window=2m", "--state-dir=/tmp/join"}))
		assert.Equal(t, 2*time.Minute, v.GetDuration("window"))
		assert.Equal(t, "/tmp/join", v.GetString("state-dir"))
		assert.Equal(t, 4, v.GetInt("parallelism"))
	})

	t.Run("environment fills unset flags", func(t *testing.T) {
		t.Setenv("KCOGROUP_PARALLELISM", "7")
		v := newViper()
		cmd := newCommand(v)
		assert.NoError(t, cmd.ParseFlags(nil))
		assert.Equal(t, 7, v.GetInt("parallelism"))
	})
}
