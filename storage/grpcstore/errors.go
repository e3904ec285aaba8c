package grpcstore

import (
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/commons/storage"
)

func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.InvalidArgument:
		// The server reports bad head names and bad CIDs with the same code.
		if strings.HasPrefix(st.Message(), storage.ErrInvalidHead.Error()) {
			return fmt.Errorf("%w: %s", storage.ErrInvalidHead, st.Message())
		}
		return storage.ErrInvalidCID
	case codes.DataLoss:
		return storage.ErrCIDMismatch
	case codes.AlreadyExists:
		return storage.ErrImmutable
	case codes.Unavailable:
		if st.Message() == storage.ErrClosed.Error() {
			return storage.ErrClosed
		}
		return err
	default:
		return err
	}
}
