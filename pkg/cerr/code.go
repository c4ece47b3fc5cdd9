package cerr

import (
	"net/http"

	"connectrpc.com/connect"
)

//go:generate go tool stringer -type=Code -output=code_string.go code.go
type Code int

const (
	OK                 = Code(0)
	Canceled           = Code(1)
	Unknown            = Code(2)
	InvalidArgument    = Code(3)
	DeadlineExceeded   = Code(4)
	NotFound           = Code(5)
	AlreadyExists      = Code(6)
	PermissionDenied   = Code(7)
	ResourceExhausted  = Code(8)
	FailedPrecondition = Code(9)
	Aborted            = Code(10)
	OutOfRange         = Code(11)
	Unimplemented      = Code(12)
	Internal           = Code(13)
	Unavailable        = Code(14)
	DataLoss           = Code(15)
	Unauthenticated    = Code(16)
)

type codeMapping struct {
	connect connect.Code
	http    int
}

var codeMappings = map[Code]codeMapping{
	Canceled:           {connect.CodeCanceled, 499},
	Unknown:            {connect.CodeUnknown, http.StatusInternalServerError},
	InvalidArgument:    {connect.CodeInvalidArgument, http.StatusBadRequest},
	DeadlineExceeded:   {connect.CodeDeadlineExceeded, http.StatusGatewayTimeout},
	NotFound:           {connect.CodeNotFound, http.StatusNotFound},
	AlreadyExists:      {connect.CodeAlreadyExists, http.StatusConflict},
	PermissionDenied:   {connect.CodePermissionDenied, http.StatusForbidden},
	ResourceExhausted:  {connect.CodeResourceExhausted, http.StatusTooManyRequests},
	FailedPrecondition: {connect.CodeFailedPrecondition, http.StatusPreconditionFailed},
	Aborted:            {connect.CodeAborted, http.StatusConflict},
	OutOfRange:         {connect.CodeOutOfRange, http.StatusBadRequest},
	Unimplemented:      {connect.CodeUnimplemented, http.StatusNotImplemented},
	Internal:           {connect.CodeInternal, http.StatusInternalServerError},
	Unavailable:        {connect.CodeUnavailable, http.StatusServiceUnavailable},
	DataLoss:           {connect.CodeDataLoss, http.StatusInternalServerError},
	Unauthenticated:    {connect.CodeUnauthenticated, http.StatusUnauthorized},
}

var connectCodeToCodeMap = func() map[connect.Code]Code {
	m := make(map[connect.Code]Code, len(codeMappings))
	for c, mapping := range codeMappings {
		m[mapping.connect] = c
	}
	return m
}()

// NewCodeFromConnectError maps the code carried by a Connect error back to a
// Code. Errors without a Connect code map to Unknown.
func NewCodeFromConnectError(err error) Code {
	c, ok := connectCodeToCodeMap[connect.CodeOf(err)]
	if !ok {
		return Unknown
	}
	return c
}

func (c Code) ConnectCode() connect.Code {
	if c == OK {
		return 0
	}
	mapping, ok := codeMappings[c]
	if !ok {
		return connect.CodeUnknown
	}
	return mapping.connect
}

func (c Code) HTTPCode() int {
	if c == OK {
		return http.StatusOK
	}
	mapping, ok := codeMappings[c]
	if !ok {
		return http.StatusInternalServerError
	}
	return mapping.http
}
