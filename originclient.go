package bleproxy

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MaxOriginBody bounds how much of the origin's response body is read
// into memory, per spec.md §5's resource caps.
const MaxOriginBody = 8 << 20 // 8 MiB

// OriginClient forwards parsed requests to the local HTTP origin. On
// failure Forward returns a nil response and an error
// (ErrOriginUnreachable, ErrOriginTimeout, or a request-construction
// error); the caller turns that error into a synthesized 502/504/500
// response with SynthesizeError.
type OriginClient struct {
	Port    int
	Timeout time.Duration
	client  *http.Client
}

func NewOriginClient(port int, timeout time.Duration) *OriginClient {
	return &OriginClient{
		Port:    port,
		Timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Forward issues req against 127.0.0.1:Port and returns the origin's
// response. On failure it returns a classified error so the caller can
// pick the right synthesized status code (502 vs 504 vs 500).
func (c *OriginClient) Forward(req *Request) (*Response, error) {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", c.Port, req.Target)

	httpReq, err := http.NewRequest(req.Method, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}

	hasHost := false
	req.Headers.Range(func(name, value string) {
		if isHopByHop(name) {
			return
		}
		if strings.EqualFold(name, "Host") {
			hasHost = true
		}
		httpReq.Header.Add(name, value)
	})
	if !hasHost {
		httpReq.Host = "localhost:" + strconv.Itoa(c.Port)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, ErrOriginTimeout
		}
		return nil, ErrOriginUnreachable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxOriginBody))
	if err != nil {
		return nil, ErrOriginUnreachable
	}

	headers := NewHeaders()
	for name, values := range resp.Header {
		if isHopByHop(name) {
			continue
		}
		for _, v := range values {
			headers.Add(name, v)
		}
	}

	return NewResponse(resp.StatusCode, http.StatusText(resp.StatusCode), headers, body), nil
}

// SynthesizeError builds the error response for err: 502 and 504 for
// the two origin failure modes, 400 for a malformed request, 413 for an
// oversize request, and 500 for any other error.
func SynthesizeError(err error) *Response {
	switch err {
	case ErrOriginUnreachable:
		return NewResponse(http.StatusBadGateway, "Bad Gateway", nil, []byte("bad gateway"))
	case ErrOriginTimeout:
		return NewResponse(http.StatusGatewayTimeout, "Gateway Timeout", nil, []byte("gateway timeout"))
	case ErrBadRequest:
		return NewResponse(http.StatusBadRequest, "Bad Request", nil, []byte("bad request"))
	case ErrOversize:
		return NewResponse(http.StatusRequestEntityTooLarge, "Payload Too Large", nil, []byte("payload too large"))
	default:
		return NewResponse(http.StatusInternalServerError, "Internal Server Error", nil, []byte("internal server error"))
	}
}
