package compare

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fildiff/fildiff/rpc"
)

// fakeCaller answers every call with a fixed response or error.
type fakeCaller struct {
	raw json.RawMessage
	err error
}

func (f fakeCaller) Call(_ context.Context, _ rpc.Request) (json.RawMessage, error) {
	return f.raw, f.err
}

func TestRunBothValidAndEqual(t *testing.T) {
	test := identity[int](rpc.NewRequest("Filecoin.Test"))
	node := fakeCaller{raw: json.RawMessage(`42`)}
	c, r := test.Run(context.Background(), node, node)
	if c != StatusValid || r != StatusValid {
		t.Fatalf("Run() = %v, %v, want Valid, Valid", c, r)
	}
}

func TestRunSemanticMismatchBlamesCandidate(t *testing.T) {
	test := identity[int](rpc.NewRequest("Filecoin.Test"))
	candidate := fakeCaller{raw: json.RawMessage(`42`)}
	reference := fakeCaller{raw: json.RawMessage(`43`)}
	c, r := test.Run(context.Background(), candidate, reference)
	if c != StatusInvalidResponse {
		t.Errorf("candidate = %v, want InvalidResponse", c)
	}
	if r != StatusValid {
		t.Errorf("reference = %v, want Valid", r)
	}
}

func TestRunMalformedResponse(t *testing.T) {
	test := identity[int](rpc.NewRequest("Filecoin.Test"))
	candidate := fakeCaller{raw: json.RawMessage(`"not a number"`)}
	reference := fakeCaller{raw: json.RawMessage(`42`)}
	c, r := test.Run(context.Background(), candidate, reference)
	if c != StatusInvalidJSON {
		t.Errorf("candidate = %v, want InvalidJSON", c)
	}
	if r != StatusValid {
		t.Errorf("reference = %v, want Valid", r)
	}
}

func TestRunIdenticalErrorsAreValid(t *testing.T) {
	err := &rpc.CallError{Kind: rpc.KindMethodNotFound, Code: -32601, Message: "method not found"}
	test := identity[int](rpc.NewRequest("Filecoin.Unknown"))
	node := fakeCaller{err: err}
	c, r := test.Run(context.Background(), node, node)
	if c != StatusValid || r != StatusValid {
		t.Fatalf("Run() = %v, %v, want Valid, Valid", c, r)
	}
}

func TestRunDifferingErrorsKeepClassification(t *testing.T) {
	test := identity[int](rpc.NewRequest("Filecoin.Test"))
	candidate := fakeCaller{err: &rpc.CallError{Kind: rpc.KindMethodNotFound, Code: -32601, Message: "method not found"}}
	reference := fakeCaller{err: &rpc.CallError{Kind: rpc.KindTimeout, Message: "context deadline exceeded"}}
	c, r := test.Run(context.Background(), candidate, reference)
	if c != StatusMissingMethod {
		t.Errorf("candidate = %v, want MissingMethod", c)
	}
	if r != StatusTimeout {
		t.Errorf("reference = %v, want Timeout", r)
	}
}

func TestRunOneSidedError(t *testing.T) {
	test := identity[int](rpc.NewRequest("Filecoin.Test"))
	candidate := fakeCaller{err: &rpc.CallError{Kind: rpc.KindInternal, Message: "boom"}}
	reference := fakeCaller{raw: json.RawMessage(`42`)}
	c, r := test.Run(context.Background(), candidate, reference)
	if c != StatusInternalServerError {
		t.Errorf("candidate = %v, want InternalServerError", c)
	}
	if r != StatusValid {
		t.Errorf("reference = %v, want Valid", r)
	}
}

func TestBasicSkipsSemanticCheck(t *testing.T) {
	test := basic[int](rpc.NewRequest("Filecoin.Test"))
	candidate := fakeCaller{raw: json.RawMessage(`1`)}
	reference := fakeCaller{raw: json.RawMessage(`2`)}
	c, r := test.Run(context.Background(), candidate, reference)
	if c != StatusValid || r != StatusValid {
		t.Fatalf("Run() = %v, %v, want Valid, Valid", c, r)
	}
}

func TestIgnoredKeepsRequest(t *testing.T) {
	test := basic[int](rpc.NewRequest("Filecoin.Test")).ignored("flaky upstream")
	if test.Ignore != "flaky upstream" {
		t.Fatalf("Ignore = %q, want reason", test.Ignore)
	}
	if test.Request.Method != "Filecoin.Test" {
		t.Fatalf("Method = %q, want Filecoin.Test", test.Request.Method)
	}
}
