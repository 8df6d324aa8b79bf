package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nishad/runsheet/internal/errors"
)

// ReadExtensions are the accepted raw read file endings.
var ReadExtensions = []string{".fq", ".fastq", ".fastq.gz", "HRremoved_raw.fastq.gz"}

// SingleEndDesignator marks raw reads without a pair designator.
const SingleEndDesignator = "_raw"

var (
	r1SuffixPatterns = suffixPatterns(R1Designators)
	r2SuffixPatterns = suffixPatterns(R2Designators)
	seSuffixPatterns = suffixPatterns([]string{SingleEndDesignator})
)

func suffixPatterns(designators []string) []*regexp.Regexp {
	exts := make([]string, len(ReadExtensions))
	for i, e := range ReadExtensions {
		exts[i] = regexp.QuoteMeta(e)
	}
	tail := `[^ ]*(?:` + strings.Join(exts, "|") + `)$`
	out := make([]*regexp.Regexp, len(designators))
	for i, d := range designators {
		out[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(d) + tail)
	}
	return out
}

// ReadSuffix returns the part of a read filename that starts at its read
// designator, e.g. "_R1_raw.fastq.gz". R1 designators are tried first, then
// R2, then the single-end designator. Exactly one designator must match.
func ReadSuffix(filename string) (string, error) {
	var matches []string
	for _, group := range [][]*regexp.Regexp{r1SuffixPatterns, r2SuffixPatterns, seSuffixPatterns} {
		for _, re := range group {
			if m := re.FindString(filename); m != "" {
				matches = append(matches, m)
			}
		}
		if len(matches) > 0 {
			break
		}
	}
	if len(matches) != 1 {
		return "", errors.E(errors.Op("extract.ReadSuffix"), errors.KindSuffix,
			fmt.Sprintf("expected 1 file suffix but found %d in %s", len(matches), filename))
	}
	return matches[0], nil
}
