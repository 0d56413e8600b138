package compare

import (
	"errors"
	"strings"
	"testing"

	"github.com/fildiff/fildiff/rpc"
)

func TestWriteReportRendersMarkdown(t *testing.T) {
	set := NewResultSet()
	set.record(basic[int](rpc.NewRequest("Filecoin.ChainHead")), StatusValid, StatusValid)
	set.record(basic[int](rpc.NewRequest("Filecoin.EthChainId")), StatusInvalidResponse, StatusValid)

	var buf strings.Builder
	err := set.WriteReport(&buf)
	if !errors.Is(err, ErrTestsFailed) {
		t.Fatalf("WriteReport() error = %v, want ErrTestsFailed", err)
	}
	out := buf.String()
	for _, want := range []string{
		"RPC Method", "Candidate", "Reference",
		"Filecoin.ChainHead", "Valid",
		"Filecoin.EthChainId", "InvalidResponse",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestWriteReportCountsRepeats(t *testing.T) {
	set := NewResultSet()
	test := basic[int](rpc.NewRequest("Filecoin.ChainGetBlock"))
	set.record(test, StatusValid, StatusValid)
	set.record(test, StatusValid, StatusValid)

	var buf strings.Builder
	if err := set.WriteReport(&buf); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Filecoin.ChainGetBlock (2)") {
		t.Fatalf("report missing repeat count:\n%s", buf.String())
	}
}

func TestWriteReportDistinctStatusesGetOwnRows(t *testing.T) {
	set := NewResultSet()
	test := basic[int](rpc.NewRequest("Filecoin.StateCall"))
	set.record(test, StatusValid, StatusValid)
	set.record(test, StatusTimeout, StatusValid)

	var buf strings.Builder
	err := set.WriteReport(&buf)
	if !errors.Is(err, ErrTestsFailed) {
		t.Fatalf("WriteReport() error = %v, want ErrTestsFailed", err)
	}
	if got := strings.Count(buf.String(), "Filecoin.StateCall"); got != 2 {
		t.Fatalf("rows mentioning the method = %d, want 2:\n%s", got, buf.String())
	}
}

func TestRecordEqualNonValidPairsAreFailures(t *testing.T) {
	for _, status := range []EndpointStatus{
		StatusMissingMethod,
		StatusInvalidRequest,
		StatusInternalServerError,
		StatusInvalidJSON,
		StatusInvalidResponse,
	} {
		set := NewResultSet()
		set.record(basic[int](rpc.NewRequest("Filecoin.Broken")), status, status)
		if !set.Failed() {
			t.Errorf("(%v, %v) bucketed as success, want failure", status, status)
		}
	}
}

func TestRecordMatchingTimeoutsPass(t *testing.T) {
	set := NewResultSet()
	set.record(basic[int](rpc.NewRequest("Filecoin.Slow")), StatusTimeout, StatusTimeout)
	if set.Failed() {
		t.Fatal("(Timeout, Timeout) bucketed as failure, want success")
	}
}

func TestResultSetFailed(t *testing.T) {
	set := NewResultSet()
	if set.Failed() {
		t.Fatal("empty set reported failure")
	}
	set.record(basic[int](rpc.NewRequest("Filecoin.Version")), StatusValid, StatusValid)
	if set.Failed() {
		t.Fatal("all-success set reported failure")
	}
	set.record(basic[int](rpc.NewRequest("Filecoin.Version")), StatusMissingMethod, StatusValid)
	if !set.Failed() {
		t.Fatal("diverging set did not report failure")
	}
}
