// testcase.go defines the unit of comparison: one RPC request plus the
// predicates deciding whether each side's answer is well-formed and whether
// the two answers agree. Syntax checks are evaluated per side in isolation;
// the semantic check only runs when both sides passed their syntax check.
package compare

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"github.com/fildiff/fildiff/rpc"
)

// Caller issues one JSON-RPC call. *rpc.Client implements it; tests use
// fakes.
type Caller interface {
	Call(ctx context.Context, req rpc.Request) (json.RawMessage, error)
}

// RpcTest is one immutable catalogue entry.
type RpcTest struct {
	Request rpc.Request

	// CheckSyntax reports whether a single side's raw response has the
	// method's expected shape. It must not depend on the other side.
	CheckSyntax func(raw json.RawMessage) bool

	// CheckSemantics compares the two raw responses. Only meaningful when
	// both passed CheckSyntax.
	CheckSemantics func(candidate, reference json.RawMessage) bool

	// Ignore, when non-empty, marks the test skip-by-default with a reason.
	Ignore string
}

// decodes reports whether raw deserializes into T.
func decodes[T any](raw json.RawMessage) bool {
	var v T
	return json.Unmarshal(raw, &v) == nil
}

// basic checks only that both sides answer with the expected JSON shape.
func basic[T any](req rpc.Request) RpcTest {
	return RpcTest{
		Request:        req,
		CheckSyntax:    decodes[T],
		CheckSemantics: func(_, _ json.RawMessage) bool { return true },
	}
}

// validate additionally decodes both sides into T and applies a custom
// equivalence predicate.
func validate[T any](req rpc.Request, check func(candidate, reference T) bool) RpcTest {
	return RpcTest{
		Request:     req,
		CheckSyntax: decodes[T],
		CheckSemantics: func(candidate, reference json.RawMessage) bool {
			var a, b T
			if err := json.Unmarshal(candidate, &a); err != nil {
				return false
			}
			if err := json.Unmarshal(reference, &b); err != nil {
				return false
			}
			return check(a, b)
		},
	}
}

// identity requires the candidate to answer exactly like the reference.
func identity[T any](req rpc.Request) RpcTest {
	return validate[T](req, func(a, b T) bool {
		return reflect.DeepEqual(a, b)
	})
}

// ignored marks the test skip-by-default while keeping it enumerable.
func (t RpcTest) ignored(reason string) RpcTest {
	t.Ignore = reason
	return t
}

// withTimeout overrides the per-call timeout for this test only.
func (t RpcTest) withTimeout(d time.Duration) RpcTest {
	t.Request = t.Request.WithTimeout(d)
	return t
}

// Run issues the request against both nodes and classifies the outcomes.
// Arbitration, with the reference assumed correct:
//   - both sides syntactically valid: semantic agreement makes both Valid,
//     disagreement marks only the candidate InvalidResponse;
//   - both sides failing identically: an equally-unsupported method is no
//     regression, both become Valid;
//   - anything else: each side keeps its independent classification.
func (t RpcTest) Run(ctx context.Context, candidate, reference Caller) (EndpointStatus, EndpointStatus) {
	candRes, candErr := candidate.Call(ctx, t.Request)
	refRes, refErr := reference.Call(ctx, t.Request)

	switch {
	case candErr == nil && refErr == nil && t.CheckSyntax(candRes) && t.CheckSyntax(refRes):
		if t.CheckSemantics(candRes, refRes) {
			return StatusValid, StatusValid
		}
		return StatusInvalidResponse, StatusValid
	case candErr != nil && refErr != nil && sameError(candErr, refErr):
		return StatusValid, StatusValid
	default:
		return t.sideStatus(candRes, candErr), t.sideStatus(refRes, refErr)
	}
}

func (t RpcTest) sideStatus(raw json.RawMessage, err error) EndpointStatus {
	if err != nil {
		return statusFromError(err)
	}
	if t.CheckSyntax(raw) {
		return StatusValid
	}
	return StatusInvalidJSON
}

func sameError(a, b error) bool {
	ca, okA := a.(*rpc.CallError)
	cb, okB := b.(*rpc.CallError)
	if okA && okB {
		return ca.Same(cb)
	}
	return a.Error() == b.Error()
}
