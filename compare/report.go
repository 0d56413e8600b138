// report.go accumulates per-test outcomes and renders them as a GitHub
// flavoured Markdown table, one row per distinct (method, statuses) triple
// with a repeat count.
package compare

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
)

// ErrTestsFailed reports that at least one test diverged. The run itself
// completed; the candidate just did not agree with the reference.
var ErrTestsFailed = errors.New("some tests failed")

// ResultKey identifies one row of the report.
type ResultKey struct {
	Method    string
	Candidate EndpointStatus
	Reference EndpointStatus
}

// ResultSet buckets outcomes into successes and failures, counting repeats.
type ResultSet struct {
	success map[ResultKey]int
	failure map[ResultKey]int
}

func NewResultSet() *ResultSet {
	return &ResultSet{
		success: make(map[ResultKey]int),
		failure: make(map[ResultKey]int),
	}
}

// passing reports whether a status pair counts as a pass. Only two pairs
// do: both sides answering correctly, or both sides timing out. Any other
// agreement, say two distinct internal errors both classified
// InternalServerError, is still a failure.
func passing(candidate, reference EndpointStatus) bool {
	if candidate == StatusValid && reference == StatusValid {
		return true
	}
	return candidate == StatusTimeout && reference == StatusTimeout
}

func (s *ResultSet) record(t RpcTest, candidate, reference EndpointStatus) {
	key := ResultKey{Method: t.Request.Method, Candidate: candidate, Reference: reference}
	if passing(candidate, reference) {
		s.success[key]++
	} else {
		s.failure[key]++
	}
}

// Failed reports whether any test diverged.
func (s *ResultSet) Failed() bool {
	return len(s.failure) > 0
}

// WriteReport renders the full result table, failures last so they are the
// closest thing to the cursor when the run ends.
func (s *ResultSet) WriteReport(w io.Writer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"RPC Method", "Candidate", "Reference"})
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)

	for _, key := range sortedKeys(s.success) {
		table.Append(row(key, s.success[key]))
	}
	for _, key := range sortedKeys(s.failure) {
		table.Append(row(key, s.failure[key]))
	}
	table.Render()

	if s.Failed() {
		return ErrTestsFailed
	}
	return nil
}

func row(key ResultKey, count int) []string {
	method := key.Method
	if count > 1 {
		method = fmt.Sprintf("%s (%d)", method, count)
	}
	return []string{method, key.Candidate.String(), key.Reference.String()}
}

func sortedKeys(m map[ResultKey]int) []ResultKey {
	keys := make([]ResultKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		if a.Candidate != b.Candidate {
			return a.Candidate < b.Candidate
		}
		return a.Reference < b.Reference
	})
	return keys
}
