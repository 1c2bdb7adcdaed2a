package provider

import (
	"fmt"
	"time"
)

// ErrorKind classifies why a provider call produced no usable response.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota + 1
	KindInvalidResponse
	KindTransportFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "TIMEOUT"
	case KindInvalidResponse:
		return "INVALID_RESPONSE"
	case KindTransportFailure:
		return "TRANSPORT_FAILURE"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Request is one prompt for one role.
type Request struct {
	RunID     string
	Role      Role
	Symbol    string
	System    string
	User      string
	MaxTokens int
}

// Response carries the raw model text and the JSON object pulled out of it.
type Response struct {
	Provider Name
	Raw      string
	JSON     string
	Elapsed  time.Duration
}

// Result is either Ok(Response) or Error(kind).
type Result struct {
	resp Response
	kind ErrorKind
	err  error
}

func Ok(resp Response) Result { return Result{resp: resp} }

func Fail(kind ErrorKind, err error) Result {
	if err == nil {
		err = fmt.Errorf("%s", kind)
	}
	return Result{kind: kind, err: err}
}

func (r Result) IsOk() bool         { return r.kind == 0 }
func (r Result) Response() Response { return r.resp }
func (r Result) Kind() ErrorKind    { return r.kind }
func (r Result) Err() error         { return r.err }

func (r Result) String() string {
	if r.IsOk() {
		return fmt.Sprintf("ok(%s, %s)", r.resp.Provider, r.resp.Elapsed.Truncate(time.Millisecond))
	}
	return fmt.Sprintf("error(%s: %v)", r.kind, r.err)
}
