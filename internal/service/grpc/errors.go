package grpcsvc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// statusFromError переводит доменную ошибку в gRPC-статус.
// Отказ правила допуска несёт текст причины, имя правила уходит в details.
func statusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		st := status.New(codes.FailedPrecondition, ve.Reason)
		detail, derr := structpb.NewStruct(map[string]any{"rule": ve.Rule})
		if derr != nil {
			return st.Err()
		}
		if withDetail, derr := st.WithDetails(detail); derr == nil {
			return withDetail.Err()
		}
		return st.Err()
	case domain.IsConflict(err):
		return status.Error(codes.Aborted, err.Error())
	case domain.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrReservationExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case domain.IsInvalidState(err),
		errors.Is(err, domain.ErrNothingToUndo),
		errors.Is(err, domain.ErrNothingToRedo):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case domain.IsInvalidInput(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// RuleFromStatus достаёт имя правила из details статуса FailedPrecondition.
func RuleFromStatus(err error) (string, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return "", false
	}
	for _, d := range st.Details() {
		if s, ok := d.(*structpb.Struct); ok {
			if rule, ok := s.AsMap()["rule"].(string); ok {
				return rule, true
			}
		}
	}
	return "", false
}
