// filter.go restricts which catalogue entries run, by case-sensitive
// substring match on the method name. Reject rules always win over allow
// rules; an empty allow list authorizes everything not rejected.
package compare

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// FilterList holds allow and reject substring rules.
type FilterList struct {
	Allow  []string
	Reject []string
}

// NewFilterList builds a single-rule list from an inline spec: a substring
// to allow, or with a leading '!' a substring to reject. An empty spec
// allows everything.
func NewFilterList(spec string) FilterList {
	var f FilterList
	if rule, ok := strings.CutPrefix(spec, "!"); ok {
		f.Reject = append(f.Reject, rule)
	} else if spec != "" {
		f.Allow = append(f.Allow, spec)
	}
	return f
}

// LoadFilterList reads rules from a UTF-8 text file, one per line. Blank
// lines and lines starting with '#' are ignored; a leading '!' marks a
// reject rule; everything else is an allow rule.
func LoadFilterList(path string) (FilterList, error) {
	f, err := os.Open(path)
	if err != nil {
		return FilterList{}, fmt.Errorf("opening filter file: %w", err)
	}
	defer f.Close()
	return ParseFilterList(f)
}

// ParseFilterList parses the filter-file line grammar.
func ParseFilterList(r io.Reader) (FilterList, error) {
	var list FilterList
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if rule, ok := strings.CutPrefix(line, "!"); ok {
			list.Reject = append(list.Reject, rule)
		} else {
			list.Allow = append(list.Allow, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return FilterList{}, fmt.Errorf("reading filter rules: %w", err)
	}
	return list, nil
}

// Authorize reports whether a method name may run.
func (f FilterList) Authorize(name string) bool {
	for _, r := range f.Reject {
		if strings.Contains(name, r) {
			return false
		}
	}
	if len(f.Allow) == 0 {
		return true
	}
	for _, a := range f.Allow {
		if strings.Contains(name, a) {
			return true
		}
	}
	return false
}
