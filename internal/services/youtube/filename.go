package youtube

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxFileNameLength = 200

// FileNameForTitle derives the output file name for a video title.
func FileNameForTitle(title, container string) string {
	name := strings.TrimSpace(norm.NFC.String(title))
	if name == "" {
		name = "Unknown"
	}

	// Remove or replace invalid characters for file names
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	// Leading dots would hide the file or form ".."
	if strings.HasPrefix(name, ".") {
		name = "_" + strings.TrimLeft(name, ".")
	}

	ext := "." + container
	if limit := maxFileNameLength - len(ext); len(name) > limit {
		name = truncateUTF8(name, limit)
	}

	return name + ext
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
