package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"obecsync/internal/record"
)

var issuePattern = regexp.MustCompile(`(?i)zpravodaj\s+(\d+)/(\d{4})`)

// Older issues were published as "zpravodaj <month> YYYY"; the month
// number stands in for the release number.
var czechMonths = map[string]int{
	"leden": 1, "ledna": 1,
	"únor": 2, "února": 2,
	"březen": 3, "března": 3,
	"duben": 4, "dubna": 4,
	"květen": 5, "května": 5,
	"červen": 6, "června": 6,
	"červenec": 7, "července": 7,
	"srpen": 8, "srpna": 8,
	"září": 9,
	"říjen": 10, "října": 10,
	"listopad": 11, "listopadu": 11,
	"prosinec": 12, "prosince": 12,
}

// Newspaper normalizes newsletter listing rows ("text", "href") into
// NewspaperIssue records.
type Newspaper struct {
	// BaseURL resolves site-relative links.
	BaseURL string
}

func (n Newspaper) Normalize(raw record.Raw) (record.Record, error) {
	text := strings.ToLower(strings.TrimSpace(raw["text"]))

	release, year, err := parseIssueLabel(text)
	if err != nil {
		return record.Record{}, err
	}
	if release < 1 || release > 12 {
		return record.Record{}, fmt.Errorf("newspaper %q: release %d out of range 1-12", text, release)
	}
	if current := time.Now().Year(); year < 1970 || year > current {
		return record.Record{}, fmt.Errorf("newspaper %q: year %d out of range 1970-%d", text, year, current)
	}

	link := absoluteLink(n.BaseURL, raw["href"])
	if link == "" {
		return record.Record{}, fmt.Errorf("newspaper %q: empty link", text)
	}
	if !strings.HasSuffix(strings.ToLower(link), ".pdf") {
		return record.Record{}, fmt.Errorf("newspaper %q: link %s does not point to a PDF", text, link)
	}

	issue := record.NewspaperIssue{Year: year, Release: release, Link: link}
	return issue.Canonical(), nil
}

func parseIssueLabel(text string) (release, year int, err error) {
	if m := issuePattern.FindStringSubmatch(text); m != nil {
		release, _ = strconv.Atoi(m[1])
		year, _ = strconv.Atoi(m[2])
		return release, year, nil
	}
	for month, num := range czechMonths {
		p := regexp.MustCompile(`zpravodaj\s+` + regexp.QuoteMeta(month) + `\s+(\d{4})`)
		if m := p.FindStringSubmatch(text); m != nil {
			year, _ = strconv.Atoi(m[1])
			return num, year, nil
		}
	}
	return 0, 0, fmt.Errorf("newspaper %q: unrecognized issue label", text)
}
