package cerr

import (
	"context"
	"errors"

	"connectrpc.com/connect"
)

type convertConnectErrorInterceptor struct{}

// NewConvertConnectErrorInterceptor converts *Error into Connect errors on the
// handler side and Connect errors back into *Error on the client side.
func NewConvertConnectErrorInterceptor() connect.Interceptor {
	return &convertConnectErrorInterceptor{}
}

func (i *convertConnectErrorInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		resp, err := next(ctx, req)
		if req.Spec().IsClient {
			return resp, FromConnectError(err)
		}
		return resp, ExtractConnectError(ctx, err)
	}
}

func (i *convertConnectErrorInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *convertConnectErrorInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		err := next(ctx, conn)
		return ExtractConnectError(ctx, err)
	}
}

// FromConnectError turns an error returned by a Connect client into *Error,
// keeping the server supplied message.
func FromConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return NewError(Unavailable, "request failed", err)
	}
	cErr := &Error{
		Code: NewCodeFromConnectError(err),
		Msg:  connectErr.Message(),
		Err:  err,
	}
	for _, d := range connectErr.Details() {
		if v, err := d.Value(); err == nil {
			cErr.Details = append(cErr.Details, v)
		}
	}
	return cErr
}
