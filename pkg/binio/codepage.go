package binio

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// CodePage decodes single-byte text through a fixed 256-entry table.
// Asset names and configuration text are never UTF-8, so the table is
// shipped with the binary instead of depending on the host locale.
type CodePage struct {
	name  string
	table *charmap.Charmap
}

// DefaultCodePage is the Western European table used by the asset pipeline.
var DefaultCodePage = &CodePage{name: "windows-1252", table: charmap.Windows1252}

var codePages = map[string]*charmap.Charmap{
	"windows-1250": charmap.Windows1250,
	"windows-1251": charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"iso-8859-2":   charmap.ISO8859_2,
	"cp437":        charmap.CodePage437,
	"cp850":        charmap.CodePage850,
}

// LookupCodePage returns the table registered under name (case-insensitive).
func LookupCodePage(name string) (*CodePage, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	table, ok := codePages[key]
	if !ok {
		return nil, fmt.Errorf("unknown code page %q", name)
	}
	return &CodePage{name: key, table: table}, nil
}

// Name returns the canonical name of the table.
func (cp *CodePage) Name() string {
	return cp.name
}

// Decode maps every byte of b through the table.
func (cp *CodePage) Decode(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(cp.table.DecodeByte(c))
	}
	return sb.String()
}
