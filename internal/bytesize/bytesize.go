// Package bytesize parses the human-readable sizes binlogkit's config
// accepts for its two size-bearing knobs, the writer's buffer capacity and
// the maximum segment size: "64KiB", "1GB", or a plain byte count.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes decoded from a config value.
type ByteSize uint64

const (
	B ByteSize = 1

	// Decimal units (×1000).
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB

	// Binary units (×1024).
	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
)

// unit maps a lower-cased suffix to its multiplier. Both the short ("k",
// "mi") and full ("kb", "mib") spellings are accepted; anything a segment
// size could plausibly need tops out at gibibytes.
func unit(suffix string) (ByteSize, bool) {
	switch suffix {
	case "", "b":
		return B, true
	case "k", "kb":
		return KB, true
	case "m", "mb":
		return MB, true
	case "g", "gb":
		return GB, true
	case "ki", "kib":
		return KiB, true
	case "mi", "mib":
		return MiB, true
	case "gi", "gib":
		return GiB, true
	default:
		return 0, false
	}
}

// ParseByteSize decodes s into a ByteSize. The numeric part may carry a
// fraction ("1.5GiB"); the suffix is case-insensitive and optional.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("bytesize: empty value")
	}

	// Split the numeric prefix from the unit suffix.
	split := len(s)
	for i, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			split = i
			break
		}
	}
	numStr := s[:split]
	suffix := strings.ToLower(strings.TrimSpace(s[split:]))

	mult, ok := unit(suffix)
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q in %q", s[split:], s)
	}

	if strings.Contains(numStr, ".") {
		f, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, fmt.Errorf("bytesize: invalid number in %q: %w", s, err)
		}
		return ByteSize(f * float64(mult)), nil
	}

	n, err := strconv.ParseUint(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number in %q: %w", s, err)
	}
	return ByteSize(n) * mult, nil
}

// UnmarshalText lets ByteSize fields decode directly from YAML scalars and
// environment strings.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// String renders b in the largest binary unit it reaches, mirroring how
// the config is written by hand.
func (b ByteSize) String() string {
	switch {
	case b >= GiB:
		return fmt.Sprintf("%.2fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.2fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.2fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", uint64(b))
	}
}

// Uint64 returns b as a plain byte count.
func (b ByteSize) Uint64() uint64 { return uint64(b) }
