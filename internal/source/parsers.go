package source

import (
	"fmt"
	"regexp"
	"strings"

	"obecsync/internal/record"
)

// The contact API publishes page text with bold titles, labeled lines and
// pipe-separated staff tables. The regexes below mirror the formats the
// site has used for years; a parser that matches nothing returns an error
// so the stale downstream data is left untouched.

var (
	stackRowPattern  = regexp.MustCompile(`\| \*\*(.+?)\*\*\| (.+?) \| (.+?) \| (.+)`)
	boldTitlePattern = regexp.MustCompile(`\*\*(.+?)\*\*`)
	labelPatterns    = map[string]*regexp.Regexp{
		"phone":       regexp.MustCompile(`Tel\.: (.+)`),
		"phone2":      regexp.MustCompile(`Mobil: (.+)`),
		"email":       regexp.MustCompile(`E-mail: (.+)`),
		"web":         regexp.MustCompile(`Web: (.+)`),
		"maintenance": regexp.MustCompile(`Údržba obce: (.+)`),
	}
)

// ParseStackTable extracts staff rows of the form
// "| **Name**| position | phone | email" (town hall directory).
func ParseStackTable(content string) ([]record.Raw, error) {
	matches := stackRowPattern.FindAllStringSubmatch(content, -1)
	rows := make([]record.Raw, 0, len(matches))
	for _, m := range matches {
		title := strings.TrimSpace(m[1])
		if title == "" {
			continue
		}
		rows = append(rows, record.Raw{
			"title":    title,
			"subtitle": strings.TrimSpace(m[2]),
			"phone":    strings.TrimSpace(m[3]),
			"email":    strings.TrimSpace(m[4]),
		})
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no staff rows found")
	}
	return rows, nil
}

// ParseBlocks extracts "**Title**" blocks with labeled detail lines
// (schools, post office and similar listings). The first unlabeled line
// of a block is taken as the address.
func ParseBlocks(content string) ([]record.Raw, error) {
	titles := boldTitlePattern.FindAllStringSubmatchIndex(content, -1)
	var rows []record.Raw
	for i, loc := range titles {
		title := strings.TrimSpace(content[loc[2]:loc[3]])
		end := len(content)
		if i+1 < len(titles) {
			end = titles[i+1][0]
		}
		details := content[loc[1]:end]

		row := record.Raw{"title": title}
		for field, p := range labelPatterns {
			if m := p.FindStringSubmatch(details); m != nil {
				row[field] = strings.TrimSpace(m[1])
			}
		}
		if addr := firstUnlabeledLine(details); addr != "" {
			row["address"] = addr
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no titled blocks found")
	}
	return rows, nil
}

// GeneralContact returns a parser that folds the whole payload into a
// single contact with a fixed title (the municipality's main contact).
func GeneralContact(title string) ParserFunc {
	return func(content string) ([]record.Raw, error) {
		row := record.Raw{"title": title}
		matched := false
		for field, p := range labelPatterns {
			if m := p.FindStringSubmatch(content); m != nil {
				row[field] = strings.TrimSpace(m[1])
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("no contact lines found")
		}
		return []record.Raw{row}, nil
	}
}

// ParseSections handles pages split by "#####" heading markers, where
// each section's title is the last line before the marker (doctors and
// pharmacies share one page). keyword selects sections by title: keep
// true retains matching titles, false drops them. allowEmpty suppresses
// the no-rows error for pages where the selection may match nothing.
func ParseSections(keyword string, keep, allowEmpty bool) ParserFunc {
	return func(content string) ([]record.Raw, error) {
		sections := strings.Split(content, "\r\n#####\r\n")
		var rows []record.Raw
		for i := 1; i < len(sections); i++ {
			lines := strings.Split(sections[i-1], "\n")
			title := strings.TrimSpace(lines[len(lines)-1])
			if title == "" || strings.Contains(title, keyword) != keep {
				continue
			}
			section := sections[i]

			row := record.Raw{"title": title}
			if m := boldTitlePattern.FindStringSubmatch(section); m != nil {
				row["subtitle"] = strings.TrimSpace(m[1])
			}
			for field, p := range labelPatterns {
				if m := p.FindStringSubmatch(section); m != nil {
					row[field] = strings.TrimSpace(m[1])
				}
			}
			if addr := firstUnlabeledLine(section); addr != "" {
				row["address"] = addr
			}
			rows = append(rows, row)
		}
		if len(rows) == 0 && !allowEmpty {
			return nil, fmt.Errorf("no sections found")
		}
		return rows, nil
	}
}

func firstUnlabeledLine(details string) string {
	for _, line := range strings.Split(details, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, ":") || strings.HasPrefix(line, "|") ||
			strings.HasPrefix(line, "**") || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}
