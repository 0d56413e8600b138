// Package compare replays a catalogue of JSON-RPC calls against a candidate
// Filecoin node and a reference node and classifies how their answers
// relate. The reference node is assumed correct: when both sides return
// syntactically valid but semantically different answers, the candidate is
// the one marked wrong.
package compare

import "github.com/fildiff/fildiff/rpc"

// EndpointStatus is the per-side outcome of one test call.
type EndpointStatus int

const (
	// StatusMissingMethod: the node does not serve the method.
	StatusMissingMethod EndpointStatus = iota
	// StatusInvalidRequest: the node rejected the request itself.
	StatusInvalidRequest
	// StatusInternalServerError: catch-all for node-side failures.
	StatusInternalServerError
	// StatusInvalidJSON: the response does not match the expected shape.
	StatusInvalidJSON
	// StatusInvalidResponse: right shape, but the semantic check against
	// the reference answer failed.
	StatusInvalidResponse
	// StatusTimeout: the call exceeded its deadline.
	StatusTimeout
	// StatusValid: the response passed every applicable check.
	StatusValid
)

func (s EndpointStatus) String() string {
	switch s {
	case StatusMissingMethod:
		return "MissingMethod"
	case StatusInvalidRequest:
		return "InvalidRequest"
	case StatusInternalServerError:
		return "InternalServerError"
	case StatusInvalidJSON:
		return "InvalidJSON"
	case StatusInvalidResponse:
		return "InvalidResponse"
	case StatusTimeout:
		return "Timeout"
	case StatusValid:
		return "Valid"
	default:
		return "Unknown"
	}
}

// statusFromError maps a call failure onto the status taxonomy using the
// client's closed error kinds.
func statusFromError(err error) EndpointStatus {
	if ce, ok := err.(*rpc.CallError); ok {
		switch ce.Kind {
		case rpc.KindMethodNotFound:
			return StatusMissingMethod
		case rpc.KindInvalidRequest:
			return StatusInvalidRequest
		case rpc.KindTimeout:
			return StatusTimeout
		}
	}
	return StatusInternalServerError
}
