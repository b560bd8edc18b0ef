package integration

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/roombook/internal/clock"
	"github.com/vladislavdragonenkov/roombook/internal/domain"
	grpcsvc "github.com/vladislavdragonenkov/roombook/internal/service/grpc"
	"github.com/vladislavdragonenkov/roombook/internal/service/notify"
	"github.com/vladislavdragonenkov/roombook/internal/service/reservation"
	"github.com/vladislavdragonenkov/roombook/internal/storage/memory"
	"github.com/vladislavdragonenkov/roombook/internal/storage/yamlfile"
)

// понедельник, 08:30
var suiteNow = time.Date(2025, 6, 9, 8, 30, 0, 0, time.UTC)

type handler func(context.Context, *structpb.Struct) (*structpb.Struct, error)

// ReservationLifecycleTestSuite прогоняет жизненный цикл брони через gRPC-слой поверх YAML-снимка.
type ReservationLifecycleTestSuite struct {
	suite.Suite
	path    string
	logger  *log.Entry
	inbox   domain.NotificationRepository
	service *grpcsvc.ReservationService
}

func (suite *ReservationLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	suite.logger = baseLogger.WithField("component", "integration-test")

	suite.path = filepath.Join(suite.T().TempDir(), "reservations.yaml")
	suite.inbox = memory.NewNotificationRepository()
	suite.service = suite.start()
}

// start поднимает движок на файле suite.path, загружая сохранённое состояние.
func (suite *ReservationLifecycleTestSuite) start() *grpcsvc.ReservationService {
	fixed := clock.NewFixed(suiteNow)

	store := memory.NewReservationStore(yamlfile.New(suite.path, suite.logger),
		memory.WithRetry(memory.RetryConfig{MaxAttempts: 1}),
		memory.WithLogger(suite.logger),
	)
	require.NoError(suite.T(), store.Load(context.Background()))

	notifier := notify.NewNotifier(notify.WithClock(fixed), notify.WithLogger(suite.logger))
	notifier.Register("inbox", notify.InboxObserver(suite.inbox))

	engine := reservation.NewService(store,
		reservation.WithClock(fixed),
		reservation.WithNotifier(notifier),
		reservation.WithInbox(suite.inbox),
		reservation.WithLogger(suite.logger),
	)
	return grpcsvc.NewReservationService(engine, suite.logger)
}

func (suite *ReservationLifecycleTestSuite) call(fn handler, req map[string]any) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	require.NoError(suite.T(), err)
	out, err := fn(context.Background(), in)
	if err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (suite *ReservationLifecycleTestSuite) mustCall(fn handler, req map[string]any) map[string]any {
	resp, err := suite.call(fn, req)
	require.NoError(suite.T(), err)
	return resp
}

func (suite *ReservationLifecycleTestSuite) requireCode(err error, code codes.Code) {
	require.Error(suite.T(), err)
	require.Equal(suite.T(), code, status.Code(err), err.Error())
}

func (suite *ReservationLifecycleTestSuite) waitForNotification(recipient, kind string, timeout time.Duration) {
	require.Eventually(suite.T(), func() bool {
		items, err := suite.inbox.List(context.Background(), recipient, 0)
		if err != nil {
			return false
		}
		for _, n := range items {
			if string(n.Kind) == kind {
				return true
			}
		}
		return false
	}, timeout, 10*time.Millisecond, "no %s notification for %s", kind, recipient)
}

func booking(requester, room, start, end, purpose string) map[string]any {
	return map[string]any{
		"requester_id":      requester,
		"building":          "Engineering",
		"floor":             "2",
		"room":              room,
		"title":             "Algorithms",
		"date":              "2025-06-10",
		"start_time":        start,
		"end_time":          end,
		"purpose":           purpose,
		"participant_count": 8,
		"capacity":          30,
	}
}

func reservationOf(resp map[string]any) map[string]any {
	r, _ := resp["reservation"].(map[string]any)
	return r
}

func (suite *ReservationLifecycleTestSuite) TestApprovedReservationSurvivesRestart() {
	created := suite.mustCall(suite.service.CreateReservation, booking("s001", "B201", "10:00", "12:00", "group-study"))
	id := reservationOf(created)["id"].(string)
	require.Equal(suite.T(), true, created["persisted"])

	approved := suite.mustCall(suite.service.ApproveReservation, map[string]any{"id": id})
	require.Equal(suite.T(), "approved", reservationOf(approved)["status"])

	// Новый экземпляр читает тот же файл
	restarted := suite.start()
	resp, err := suite.call(restarted.ListRequesterReservations, map[string]any{"requester_id": "s001"})
	require.NoError(suite.T(), err)
	items := resp["reservations"].([]any)
	require.Len(suite.T(), items, 1)
	r := items[0].(map[string]any)
	require.Equal(suite.T(), id, r["id"])
	require.Equal(suite.T(), "approved", r["status"])
	require.Equal(suite.T(), "Tuesday", r["day_of_week"])

	// Слот занят и после перезапуска
	_, err = suite.call(restarted.CreateReservation, booking("s002", "B201", "10:00", "11:00", "group-study"))
	suite.requireCode(err, codes.FailedPrecondition)

	// История команд не переживает перезапуск
	_, err = suite.call(restarted.Undo, nil)
	suite.requireCode(err, codes.FailedPrecondition)
}

func (suite *ReservationLifecycleTestSuite) TestModifyAndUndoMoveSlot() {
	created := suite.mustCall(suite.service.CreateReservation, booking("s001", "B201", "10:00", "11:00", "seminar"))
	id := reservationOf(created)["id"].(string)

	moved := booking("s001", "B202", "10:00", "11:00", "seminar")
	delete(moved, "requester_id")
	moved["id"] = id
	resp := suite.mustCall(suite.service.ModifyReservation, moved)
	require.Equal(suite.T(), "B202", reservationOf(resp)["room"])

	// Старый слот освободился
	week := suite.mustCall(suite.service.GetRoomWeek, map[string]any{"building": "Engineering", "floor": "2", "room": "B201"})
	tuesday := week["days"].([]any)[1].(map[string]any)
	require.Nil(suite.T(), tuesday["periods"].([]any)[1].(map[string]any)["reservation"])

	resp = suite.mustCall(suite.service.Undo, nil)
	require.Equal(suite.T(), "B201", reservationOf(resp)["room"])

	// После отмены B202 в 10:00 снова свободна
	_, err := suite.call(suite.service.CreateReservation, booking("s003", "B202", "10:00", "11:00", "seminar"))
	require.NoError(suite.T(), err)

	// А исходный слот снова занят
	_, err = suite.call(suite.service.CreateReservation, booking("s004", "B201", "10:00", "11:00", "seminar"))
	suite.requireCode(err, codes.FailedPrecondition)

	history := suite.mustCall(suite.service.GetHistory, nil)["entries"].([]any)
	require.Len(suite.T(), history, 1)
	require.Equal(suite.T(), true, history[0].(map[string]any)["undone"])
}

func (suite *ReservationLifecycleTestSuite) TestFacultyPreemptsStudentAndNotifies() {
	student := suite.mustCall(suite.service.CreateReservation, booking("s001", "B201", "10:00", "12:00", "group-study"))
	studentID := reservationOf(student)["id"].(string)
	suite.mustCall(suite.service.ApproveReservation, map[string]any{"id": studentID})

	faculty := suite.mustCall(suite.service.CreateReservation, booking("p010", "B201", "10:00", "12:00", "seminar"))
	require.Equal(suite.T(), "pending", reservationOf(faculty)["status"])
	preempted := faculty["preempted"].([]any)
	require.Len(suite.T(), preempted, 1)
	require.Equal(suite.T(), studentID, preempted[0].(map[string]any)["id"])

	suite.waitForNotification("s001", string(domain.EventCancelled), time.Second)

	mine := suite.mustCall(suite.service.ListRequesterReservations, map[string]any{"requester_id": "s001"})["reservations"].([]any)
	require.Len(suite.T(), mine, 1)
	require.Equal(suite.T(), "cancelled", mine[0].(map[string]any)["status"])

	pending := suite.mustCall(suite.service.ListPendingReservations, nil)["reservations"].([]any)
	require.Len(suite.T(), pending, 1)
	require.Equal(suite.T(), "p010", pending[0].(map[string]any)["requester_id"])

	week := suite.mustCall(suite.service.GetRoomWeek, map[string]any{"building": "Engineering", "floor": "2", "room": "B201"})
	tuesday := week["days"].([]any)[1].(map[string]any)
	cell := tuesday["periods"].([]any)[1].(map[string]any)["reservation"].(map[string]any)
	require.Equal(suite.T(), "p010", cell["requester_id"])

	// Студент не может занять слот преподавателя
	_, err := suite.call(suite.service.CreateReservation, booking("s002", "B201", "10:00", "11:00", "seminar"))
	suite.requireCode(err, codes.FailedPrecondition)

	// Вытеснение не попадает в историю: последней командой осталось одобрение,
	// и вернуть отменённую бронь в pending нельзя
	_, err = suite.call(suite.service.Undo, nil)
	suite.requireCode(err, codes.FailedPrecondition)
	mine = suite.mustCall(suite.service.ListRequesterReservations, map[string]any{"requester_id": "s001"})["reservations"].([]any)
	require.Equal(suite.T(), "cancelled", mine[0].(map[string]any)["status"])
}

func (suite *ReservationLifecycleTestSuite) TestCancelOwnAndInbox() {
	created := suite.mustCall(suite.service.CreateReservation, booking("s001", "B201", "13:00", "14:00", "seminar"))
	id := reservationOf(created)["id"].(string)

	_, err := suite.call(suite.service.CancelOwnReservation, map[string]any{"id": id, "requester_id": "s002"})
	suite.requireCode(err, codes.PermissionDenied)

	resp := suite.mustCall(suite.service.CancelOwnReservation, map[string]any{"id": id, "requester_id": "s001"})
	require.Equal(suite.T(), "cancelled", reservationOf(resp)["status"])

	suite.waitForNotification("s001", string(domain.EventCancelled), time.Second)
	inbox := suite.mustCall(suite.service.ListNotifications, map[string]any{"recipient": "s001", "limit": 1})["notifications"].([]any)
	require.Len(suite.T(), inbox, 1)
	require.Equal(suite.T(), id, inbox[0].(map[string]any)["reservation_id"])

	// Слот снова свободен
	_, err = suite.call(suite.service.CreateReservation, booking("s002", "B201", "13:00", "14:00", "seminar"))
	require.NoError(suite.T(), err)
}

func TestReservationLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(ReservationLifecycleTestSuite))
}
