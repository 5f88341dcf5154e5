package env

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekisa-team/mapbridge/internal/envvar"
)

func TestFromEnv(t *testing.T) {
	t.Setenv(envvar.MapbridgeEnv, "PROD")
	assert.Equal(t, Production, FromEnv())
	assert.True(t, FromEnv().IsProduction())

	t.Setenv(envvar.MapbridgeEnv, "")
	assert.Equal(t, Development, FromEnv())

	assert.Equal(t, Test, Parse(" test "))
}
