package grpc

import (
	"errors"

	"github.com/dmitrijs2005/listbuffer/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors onto gRPC status codes. Internal failures
// keep their detail out of the response.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrItemNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrNotSupported):
		return status.Error(codes.Unimplemented, err.Error())
	case errors.Is(err, common.ErrInvalidDocument),
		errors.Is(err, common.ErrInvalidSchema),
		errors.Is(err, common.ErrFieldMissing),
		errors.Is(err, common.ErrFieldsMissing),
		errors.Is(err, common.ErrFileTooLarge):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
