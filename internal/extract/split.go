package extract

import (
	"regexp"
	"strings"

	"github.com/nishad/runsheet/internal/profile"
)

// Read designators, in the order they are tried.
var (
	R1Designators = []string{"_R1_", "_R1.", "-R1.", "-R1-", ".R1.", "_1."}
	R2Designators = []string{"_R2_", "_R2.", "-R2.", "-R2-", ".R2.", "_2."}
)

var r2Pattern = designatorPattern(R2Designators)

func designatorPattern(ds []string) *regexp.Regexp {
	quoted := make([]string, len(ds))
	for i, d := range ds {
		quoted[i] = regexp.QuoteMeta(d)
	}
	return regexp.MustCompile(`(?i)(?:` + strings.Join(quoted, "|") + `)`)
}

// IsSecondRead reports whether a filename carries a reverse read designator.
func IsSecondRead(name string) bool {
	return r2Pattern.MatchString(name)
}

// splitCell returns the positional parts of one cell.
func splitCell(rule *profile.SplitRule, cell string) []string {
	if rule.Pattern == nil {
		return rule.Separator.Split(cell, -1)
	}
	matches := rule.Pattern.FindAllStringSubmatch(cell, -1)
	if len(matches) == 0 {
		// Unmatched cells are not split: every part carries the whole cell.
		return []string{cell, cell}
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m[0]
		for _, g := range m[1:] {
			if g != "" {
				parts[i] = g
				break
			}
		}
	}
	return parts
}

// splitColumn splits every cell and returns parts per row, each row padded to
// the widest row. The first two parts are swapped when the first one names
// the reverse read.
func splitColumn(rule *profile.SplitRule, cells []string) ([][]string, int) {
	rows := make([][]string, len(cells))
	width := 0
	for i, c := range cells {
		rows[i] = splitCell(rule, c)
		if len(rows[i]) > width {
			width = len(rows[i])
		}
	}
	for i := range rows {
		for len(rows[i]) < width {
			rows[i] = append(rows[i], "")
		}
		if width > 1 && IsSecondRead(rows[i][0]) {
			rows[i][0], rows[i][1] = rows[i][1], rows[i][0]
		}
	}
	return rows, width
}
