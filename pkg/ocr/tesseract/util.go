package tesseract

import (
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// snippet returns a shortened version of text for logging.
func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// lineKey identifies one text line in tesseract's layout.
type lineKey struct{ block, par, line int }

// lineText joins the words of each line with spaces, one line per row.
func lineText(boxes []gosseract.BoundingBox) string {
	var b strings.Builder
	var prev *lineKey
	for _, box := range boxes {
		k := lineKey{box.BlockNum, box.ParNum, box.LineNum}
		switch {
		case prev == nil:
		case *prev != k:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
		b.WriteString(box.Word)
		prev = &k
	}
	return b.String()
}
