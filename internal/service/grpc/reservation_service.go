package grpcsvc

import (
	"context"

	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
	"github.com/vladislavdragonenkov/roombook/internal/service/command"
	"github.com/vladislavdragonenkov/roombook/internal/service/reservation"
)

// Reservations — операции движка, доступные через gRPC.
type Reservations interface {
	Create(ctx context.Context, req reservation.CreateRequest) (reservation.CreateResult, error)
	Modify(ctx context.Context, id string, details domain.Details) (reservation.Result, error)
	Approve(ctx context.Context, id string) (reservation.Result, error)
	Reject(ctx context.Context, id, reason string) (reservation.Result, error)
	Delete(ctx context.Context, id, reason string) (reservation.Result, error)
	CancelOwn(ctx context.Context, id, requesterID string) (reservation.Result, error)
	Undo(ctx context.Context) (reservation.Result, error)
	Redo(ctx context.Context) (reservation.Result, error)
	ResetHistory()
	History() []command.Entry
	ListPending() []domain.Reservation
	ListForRequester(requesterID string) []domain.Reservation
	RequesterWeek(requesterID string) domain.WeekSchedule
	RoomWeek(loc domain.Location) domain.WeekSchedule
	ListNotifications(ctx context.Context, recipient string, limit int) ([]domain.Notification, error)
}

// ReservationService реализует ReservationServer поверх движка броней.
type ReservationService struct {
	engine Reservations
	logger *log.Entry
}

// NewReservationService конструирует сервис.
func NewReservationService(engine Reservations, logger *log.Entry) *ReservationService {
	if logger == nil {
		logger = log.New().WithField("component", "reservation-grpc")
	}
	return &ReservationService{engine: engine, logger: logger}
}

// CreateReservation подаёт заявку на бронь.
func (s *ReservationService) CreateReservation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req createRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	details, err := req.details()
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Create(ctx, reservation.CreateRequest{RequesterID: req.RequesterID, Details: details})
	if err != nil {
		s.logger.WithError(err).WithField("requester_id", req.RequesterID).Info("reservation request refused")
		return nil, statusFromError(err)
	}
	if !res.Persisted {
		s.logger.WithField("reservation_id", res.Reservation.ID).Warn("reservation admitted but not persisted")
	}

	return toStruct(map[string]any{
		"reservation": reservationFields(res.Reservation),
		"preempted":   reservationList(res.Preempted),
		"persisted":   res.Persisted,
	})
}

// ModifyReservation заменяет изменяемые поля брони.
func (s *ReservationService) ModifyReservation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req modifyRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	details, err := req.details()
	if err != nil {
		return nil, err
	}
	return s.result(s.engine.Modify(ctx, req.ID, details))
}

// ApproveReservation одобряет ожидающую бронь.
func (s *ReservationService) ApproveReservation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req idRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return s.result(s.engine.Approve(ctx, req.ID))
}

// RejectReservation отклоняет ожидающую бронь.
func (s *ReservationService) RejectReservation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req idRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return s.result(s.engine.Reject(ctx, req.ID, req.Reason))
}

// DeleteReservation удаляет бронь от имени администратора.
func (s *ReservationService) DeleteReservation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req idRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return s.result(s.engine.Delete(ctx, req.ID, req.Reason))
}

// CancelOwnReservation снимает бронь по просьбе владельца.
func (s *ReservationService) CancelOwnReservation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req cancelOwnRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return s.result(s.engine.CancelOwn(ctx, req.ID, req.RequesterID))
}

// Undo отменяет последнюю административную команду.
func (s *ReservationService) Undo(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.result(s.engine.Undo(ctx))
}

// Redo повторяет последнюю отменённую команду.
func (s *ReservationService) Redo(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.result(s.engine.Redo(ctx))
}

// ResetHistory очищает оба стека истории.
func (s *ReservationService) ResetHistory(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	s.engine.ResetHistory()
	s.logger.Info("command history reset")
	return toStruct(map[string]any{"ok": true})
}

// GetHistory возвращает историю: выполненные команды, затем отменённые.
func (s *ReservationService) GetHistory(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"entries": historyList(s.engine.History())})
}

// ListPendingReservations возвращает очередь на рассмотрение.
func (s *ReservationService) ListPendingReservations(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"reservations": reservationList(s.engine.ListPending())})
}

// ListRequesterReservations возвращает брони заявителя в текущем окне.
func (s *ReservationService) ListRequesterReservations(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req requesterRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"reservations": reservationList(s.engine.ListForRequester(req.RequesterID))})
}

// GetRequesterWeek возвращает недельную сетку заявителя.
func (s *ReservationService) GetRequesterWeek(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req requesterRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	return toStruct(weekFields(s.engine.RequesterWeek(req.RequesterID)))
}

// GetRoomWeek возвращает недельную сетку аудитории.
func (s *ReservationService) GetRoomWeek(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req roomRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	loc := domain.Location{Building: req.Building, Floor: req.Floor, Room: req.Room}
	return toStruct(weekFields(s.engine.RoomWeek(loc)))
}

// ListNotifications возвращает уведомления получателя, свежие первыми.
func (s *ReservationService) ListNotifications(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req notificationsRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	items, err := s.engine.ListNotifications(ctx, req.Recipient, req.Limit)
	if err != nil {
		return nil, statusFromError(err)
	}
	return toStruct(map[string]any{"notifications": notificationList(items)})
}

func (s *ReservationService) result(res reservation.Result, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, statusFromError(err)
	}
	if !res.Persisted {
		s.logger.WithField("reservation_id", res.Reservation.ID).Warn("command applied but not persisted")
	}
	return toStruct(map[string]any{
		"reservation": reservationFields(res.Reservation),
		"command":     res.Command,
		"persisted":   res.Persisted,
	})
}

var (
	_ ReservationServer = (*ReservationService)(nil)
	_ Reservations      = (*reservation.Service)(nil)
)
