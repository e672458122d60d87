package util

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError("open device", nil))

	base := errors.New("boom")
	err := WrapError("open device", base)
	assert.EqualError(t, err, "failed to open device: boom")
	assert.ErrorIs(t, err, base)
}

func TestExtractLastError(t *testing.T) {
	stderr := "Input #0, alsa\n  Stream #0:0: Audio\narecord: main:850: audio open error: Device or resource busy\n\n"
	assert.Equal(t, "arecord: main:850: audio open error: Device or resource busy", ExtractLastError(stderr))
	assert.Empty(t, ExtractLastError("   \n\n"))

	long := strings.Repeat("x", maxErrorLineLength+10)
	got := ExtractLastError(long)
	assert.Len(t, got, maxErrorLineLength+3)
	assert.True(t, strings.HasSuffix(got, "..."))
}
