package grpcsvc

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

type detailsInput struct {
	Building         string `json:"building" validate:"required"`
	Floor            string `json:"floor"`
	Room             string `json:"room" validate:"required"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Date             string `json:"date" validate:"required"`
	StartTime        string `json:"start_time" validate:"required"`
	EndTime          string `json:"end_time" validate:"required"`
	Purpose          string `json:"purpose" validate:"required"`
	ParticipantCount int    `json:"participant_count" validate:"min=0"`
	Capacity         int    `json:"capacity" validate:"min=0"`
}

func (in detailsInput) details() (domain.Details, error) {
	purpose, err := domain.ParsePurpose(in.Purpose)
	if err != nil {
		return domain.Details{}, status.Errorf(codes.InvalidArgument, "purpose %q: %v", in.Purpose, err)
	}
	return domain.Details{
		Location: domain.Location{
			Building: strings.TrimSpace(in.Building),
			Floor:    strings.TrimSpace(in.Floor),
			Room:     strings.TrimSpace(in.Room),
		},
		Title:            in.Title,
		Description:      in.Description,
		Date:             strings.TrimSpace(in.Date),
		StartTime:        strings.TrimSpace(in.StartTime),
		EndTime:          strings.TrimSpace(in.EndTime),
		Purpose:          purpose,
		ParticipantCount: in.ParticipantCount,
		Capacity:         in.Capacity,
	}, nil
}

type createRequest struct {
	RequesterID string `json:"requester_id" validate:"required"`
	detailsInput
}

type modifyRequest struct {
	ID string `json:"id" validate:"required"`
	detailsInput
}

type idRequest struct {
	ID     string `json:"id" validate:"required"`
	Reason string `json:"reason"`
}

type cancelOwnRequest struct {
	ID          string `json:"id" validate:"required"`
	RequesterID string `json:"requester_id" validate:"required"`
}

type requesterRequest struct {
	RequesterID string `json:"requester_id" validate:"required"`
}

type roomRequest struct {
	Building string `json:"building" validate:"required"`
	Floor    string `json:"floor"`
	Room     string `json:"room" validate:"required"`
}

type notificationsRequest struct {
	Recipient string `json:"recipient" validate:"required"`
	Limit     int    `json:"limit" validate:"min=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// В сообщениях об ошибках используются ключи запроса, а не имена полей Go.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode раскладывает Struct в dst и проверяет теги validate.
func decode(in *structpb.Struct, dst any) error {
	if in == nil {
		return status.Error(codes.InvalidArgument, "request is required")
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return status.Error(codes.InvalidArgument, fmt.Sprintf("%s: failed on %q", fe.Field(), fe.Tag()))
		}
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}
