package pages

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/maruel/smeagol/internal/wiki"
)

// lineDiff renders the whole page with "-", "+" and " " line prefixes.
func lineDiff(path wiki.Path, a, b *wiki.Page) string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(string(a.Content), string(b.Content))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var sb strings.Builder
	sb.WriteString("--- a/" + path.Filepath() + "\t" + a.Commit.ID.Short() + "\n")
	sb.WriteString("+++ b/" + path.Filepath() + "\t" + b.Commit.ID.Short() + "\n")
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffEqual:
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n\\ No newline at end of file\n")
			}
		}
	}
	return sb.String()
}
