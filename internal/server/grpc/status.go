package grpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ekisa-team/mapbridge/internal/errs"
	"github.com/ekisa-team/mapbridge/internal/service"
)

// ErrorDomain is the ErrorInfo domain of every bridge error.
const ErrorDomain = "mapbridge"

// ReasonUnknownMethod is the ErrorInfo reason for methods outside the command
// surface.
const ReasonUnknownMethod = "UNKNOWN_METHOD"

var kindCodes = map[errs.Kind]codes.Code{
	errs.KindMapNotFound:           codes.NotFound,
	errs.KindEntityNotFound:        codes.NotFound,
	errs.KindInvalidArguments:      codes.InvalidArgument,
	errs.KindInvalidConfiguration:  codes.InvalidArgument,
	errs.KindProviderUnavailable:   codes.Unavailable,
	errs.KindPermissionDenied:      codes.PermissionDenied,
	errs.KindUnsupportedOnPlatform: codes.Unimplemented,
	errs.KindCanceled:              codes.Canceled,
	errs.KindInternal:              codes.Internal,
}

// toStatus converts a bridge error to a gRPC status carrying an ErrorInfo
// whose reason is the error kind.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var e *errs.Error
	classified := errors.As(err, &e)
	switch {
	case errors.Is(err, service.ErrUnknownMethod):
		return withInfo(codes.Unimplemented, err.Error(), ReasonUnknownMethod, nil)
	case !classified && errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case !classified && errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	kind := errs.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		code = codes.Internal
	}
	if kind == errs.KindCanceled && errors.Is(err, context.DeadlineExceeded) {
		code = codes.DeadlineExceeded
	}

	var metadata map[string]string
	if classified {
		metadata = make(map[string]string, len(e.Details)+1)
		for k, v := range e.Details {
			metadata[k] = fmt.Sprint(v)
		}
		if e.Entity != "" {
			metadata["entity"] = e.Entity
		}
	}
	return withInfo(code, err.Error(), string(kind), metadata)
}

func withInfo(code codes.Code, msg, reason string, metadata map[string]string) error {
	st := status.New(code, msg)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   ErrorDomain,
		Metadata: metadata,
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ErrorInfo extracts the bridge ErrorInfo from a gRPC error.
func ErrorInfo(err error) (*errdetails.ErrorInfo, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info, true
		}
	}
	return nil, false
}
