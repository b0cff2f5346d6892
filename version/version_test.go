package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	info := Info{CommitHash: "0123456789abcdef", BuildTime: "today", Version: "dev"}
	assert.Equal(t, "ilsp dev (commit 0123456789abcdef, built today)", info.String())
	assert.Equal(t, "0123456", info.Short())

	info.Version = "v0.3.1"
	assert.Equal(t, "ilsp v0.3.1 (commit 0123456789abcdef, built today)", info.String())
	assert.Equal(t, "v0.3.1", info.Short())
}

func TestGet(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
