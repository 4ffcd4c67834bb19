package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintBannerColorsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "rp", "ColorCyan")
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.NotEmpty(t, lines)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, ColorCyan))
		assert.True(t, strings.HasSuffix(l, ColorReset))
	}
}

func TestColorCodeFallback(t *testing.T) {
	assert.Equal(t, ColorReset, colorCode("Purple"))
	assert.Equal(t, ColorBlue, colorCode("ColorBlue"))
}
