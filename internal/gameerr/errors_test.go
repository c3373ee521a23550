package gameerr_test

import (
	"errors"
	"testing"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/gameerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := gameerr.New(gameerr.InvalidState, "round already in progress")

	assert.True(t, errors.Is(err, gameerr.New(gameerr.InvalidState, "")))
	assert.False(t, errors.Is(err, gameerr.New(gameerr.NotFound, "")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := gameerr.Wrap(gameerr.UpstreamUnavailable, "song catalog unreachable", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, gameerr.UpstreamUnavailable, gameerr.KindOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestKindOfDefaultsToEmptyForForeignErrors(t *testing.T) {
	assert.Equal(t, gameerr.Kind(""), gameerr.KindOf(errors.New("boom")))
	assert.Equal(t, gameerr.Kind(""), gameerr.KindOf(nil))
}
