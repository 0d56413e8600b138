// endpoint.go parses node endpoints given in the Filecoin API-info form,
// "[token:]multiaddr", e.g. "/ip4/127.0.0.1/tcp/1234/http" or
// "eyJhb...:/ip4/127.0.0.1/tcp/1234/ws", and derives the wire transport
// both endpoints of a comparison run must share.
package rpc

import (
	"fmt"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
)

// Transport identifies how JSON-RPC requests reach a node.
type Transport string

const (
	// TransportHTTP is plain request/response over HTTP POST.
	TransportHTTP Transport = "http"
	// TransportWS is a persistent websocket connection.
	TransportWS Transport = "ws"
)

// Endpoint is one node's API address: a multiaddr ending in a transport
// protocol, plus an optional JWT bearer token.
type Endpoint struct {
	Addr  ma.Multiaddr
	Token string
}

// ParseEndpoint parses "[token:]multiaddr". The token part is optional; the
// multiaddr part always starts with '/'.
func ParseEndpoint(s string) (*Endpoint, error) {
	token := ""
	addr := s
	if i := strings.Index(s, ":/"); i >= 0 {
		token = s[:i]
		addr = s[i+1:]
	}
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint %q: %w", addr, err)
	}
	return &Endpoint{Addr: m, Token: token}, nil
}

// Transport returns the endpoint's transport tag, taken from the last
// multiaddr protocol component. Only http and ws are supported.
func (e *Endpoint) Transport() (Transport, error) {
	protos := e.Addr.Protocols()
	if len(protos) == 0 {
		return "", fmt.Errorf("endpoint %s has no protocol components", e.Addr)
	}
	switch tag := protos[len(protos)-1].Name; tag {
	case "http":
		return TransportHTTP, nil
	case "ws":
		return TransportWS, nil
	default:
		return "", fmt.Errorf("unsupported endpoint transport %q", tag)
	}
}

// DialURL builds the URL the JSON-RPC client dials, e.g.
// "http://127.0.0.1:1234/rpc/v0".
func (e *Endpoint) DialURL() (string, error) {
	transport, err := e.Transport()
	if err != nil {
		return "", err
	}
	host, err := e.host()
	if err != nil {
		return "", err
	}
	port, err := e.Addr.ValueForProtocol(ma.P_TCP)
	if err != nil {
		return "", fmt.Errorf("endpoint %s has no tcp port: %w", e.Addr, err)
	}
	return fmt.Sprintf("%s://%s:%s/rpc/v0", transport, host, port), nil
}

func (e *Endpoint) host() (string, error) {
	for _, code := range []int{ma.P_DNS, ma.P_DNS4, ma.P_DNS6, ma.P_IP4, ma.P_IP6} {
		if v, err := e.Addr.ValueForProtocol(code); err == nil {
			return v, nil
		}
	}
	return "", fmt.Errorf("endpoint %s has no host component", e.Addr)
}

// DeriveTransport checks that the candidate and reference endpoints use the
// same supported transport and returns it. A mismatch is a setup error: no
// test must run against nodes reached over different transports.
func DeriveTransport(candidate, reference *Endpoint) (Transport, error) {
	a, err := candidate.Transport()
	if err != nil {
		return "", fmt.Errorf("candidate: %w", err)
	}
	b, err := reference.Transport()
	if err != nil {
		return "", fmt.Errorf("reference: %w", err)
	}
	if a != b {
		return "", fmt.Errorf("transport mismatch: candidate uses %q, reference uses %q", a, b)
	}
	return a, nil
}
