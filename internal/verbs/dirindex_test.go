package verbs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFileSizeBelowKilo(t *testing.T) {
	assert.Equal(t, "512 B", formatFileSize(512))
	assert.Equal(t, "0 B", formatFileSize(0))
}

func TestFormatFileSizeMonotonicAcrossSuffixes(t *testing.T) {
	sizes := []int64{1, 1023, 1024, 1536, 1 << 20, 1 << 30, 1 << 40, 1 << 50, 1 << 60}
	prevSuffix := 0
	for _, n := range sizes {
		got := formatFileSize(n)
		assert.NotEmpty(t, got)
		suffix := -1
		for i, s := range sizeSuffixes {
			if strings.HasSuffix(got, " "+s) {
				suffix = i
			}
		}
		assert.GreaterOrEqual(t, suffix, prevSuffix, "suffix went backwards at %d: %q", n, got)
		prevSuffix = suffix
	}
}

func TestFormatFileSizeUsesExpectedSuffix(t *testing.T) {
	assert.Equal(t, "1.00 KiB", formatFileSize(1024))
	assert.Equal(t, "1.00 MiB", formatFileSize(1<<20))
	assert.Equal(t, "1.00 GiB", formatFileSize(1<<30))
}
