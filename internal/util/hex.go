package util

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ParseBytes reads a byte list typed by a person or pasted from a capture
// tool. It accepts plain hex ("a1ff02"), separated hex ("a1 ff 02",
// "0xa1,0xff") and, when every token is prefixed with '#', decimal bytes
// ("#161 #255 #2").
func ParseBytes(s string) ([]byte, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == ':' || r == '\t' || r == '\n' || r == '[' || r == ']'
	})
	if len(fields) == 0 {
		return []byte{}, nil
	}

	if strings.HasPrefix(fields[0], "#") {
		out := make([]byte, 0, len(fields))
		for _, f := range fields {
			v, err := strconv.ParseUint(strings.TrimPrefix(f, "#"), 10, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid decimal byte %q: %w", f, err)
			}
			out = append(out, byte(v))
		}
		return out, nil
	}

	var sb strings.Builder
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
		if len(f)%2 == 1 {
			sb.WriteByte('0')
		}
		sb.WriteString(f)
	}
	out, err := hex.DecodeString(sb.String())
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return out, nil
}

// FormatBytes renders b as space separated lowercase hex pairs.
func FormatBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(hex.EncodeToString([]byte{c}))
	}
	return sb.String()
}

// DumpRow is one line of a hex dump.
type DumpRow struct {
	Offset int
	Hex    string
	Text   string
}

// HexDump splits b into rows of width bytes with a printable preview.
// Break bytes show as '|' so chunk boundaries stand out.
func HexDump(b []byte, width int) []DumpRow {
	if width <= 0 {
		width = 16
	}
	rows := make([]DumpRow, 0, (len(b)+width-1)/width)
	for off := 0; off < len(b); off += width {
		end := min(off+width, len(b))
		line := b[off:end]

		text := make([]byte, len(line))
		for i, c := range line {
			switch {
			case c == 0xFF:
				text[i] = '|'
			case c >= 0x20 && c < 0x7F:
				text[i] = c
			default:
				text[i] = '.'
			}
		}
		rows = append(rows, DumpRow{Offset: off, Hex: FormatBytes(line), Text: string(text)})
	}
	return rows
}
