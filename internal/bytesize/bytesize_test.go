package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseByteSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ByteSize
	}{
		{"0", 0},
		{"1024", 1024},
		{"4096B", 4096},

		// The config knobs this package exists for.
		{"64KiB", 64 * KiB},
		{"1MiB", MiB},
		{"1GiB", GiB},

		// Decimal spellings.
		{"1KB", 1000},
		{"100MB", 100 * MB},
		{"2GB", 2 * GB},

		// Short suffixes and mixed case.
		{"64Ki", 64 * KiB},
		{"2g", 2 * GB},
		{"8mi", 8 * MiB},
		{"16kb", 16 * KB},

		// Fractions and whitespace.
		{"1.5GiB", ByteSize(1.5 * float64(GiB))},
		{"0.5MiB", 512 * KiB},
		{" 64 KiB ", 64 * KiB},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseByteSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseByteSize_Errors(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"",
		"   ",
		"KiB",     // no number
		"64XB",    // unknown unit
		"64TiB",   // beyond the supported range
		"1..5MiB", // malformed fraction
		"-1KiB",   // negative
		"64 Ki B", // split suffix
	} {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			_, err := ParseByteSize(in)
			assert.Error(t, err)
		})
	}
}

func TestUnmarshalText(t *testing.T) {
	t.Parallel()

	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("64KiB")))
	assert.Equal(t, 64*KiB, b)

	assert.Error(t, b.UnmarshalText([]byte("sixty-four")))
	assert.Equal(t, 64*KiB, b, "a failed decode must not clobber the previous value")
}

func TestString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512B", ByteSize(512).String())
	assert.Equal(t, "64.00KiB", (64 * KiB).String())
	assert.Equal(t, "1.50MiB", (MiB + 512*KiB).String())
	assert.Equal(t, "2.00GiB", (2 * GiB).String())
}

func TestUint64(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint64(1<<30), GiB.Uint64())
}
