package grpcsvc_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/vladislavdragonenkov/roombook/internal/clock"
	grpcsvc "github.com/vladislavdragonenkov/roombook/internal/service/grpc"
	"github.com/vladislavdragonenkov/roombook/internal/service/notify"
	"github.com/vladislavdragonenkov/roombook/internal/service/reservation"
	"github.com/vladislavdragonenkov/roombook/internal/service/validation"
	"github.com/vladislavdragonenkov/roombook/internal/storage/memory"
)

const bufSize = 1024 * 1024

var testNow = time.Date(2025, 6, 9, 8, 30, 0, 0, time.UTC)

func newTestClient(t *testing.T) *grpcsvc.Client {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	logger := loggerForTests()

	fixed := clock.NewFixed(testNow)
	inbox := memory.NewNotificationRepository()
	notifier := notify.NewNotifier(notify.WithClock(fixed), notify.WithLogger(logger))
	notifier.Register("inbox", notify.InboxObserver(inbox))

	store := memory.NewReservationStore(memory.NewSnapshotStore(), memory.WithRetry(memory.RetryConfig{MaxAttempts: 1}))
	engine := reservation.NewService(store,
		reservation.WithClock(fixed),
		reservation.WithNotifier(notifier),
		reservation.WithInbox(inbox),
		reservation.WithLogger(logger),
	)

	server := grpc.NewServer()
	grpcsvc.RegisterReservationServer(server, grpcsvc.NewReservationService(engine, logger))

	go func() {
		if err := server.Serve(listener); err != nil {
			logger.WithError(err).Error("grpc serve failed")
		}
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}

	//nolint:staticcheck // grpc.Dial is required for bufconn testing
	conn, err := grpc.Dial("bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})
	return grpcsvc.NewClient(conn)
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

func seminarRequest(requester string) map[string]any {
	return map[string]any{
		"requester_id":      requester,
		"building":          "Engineering",
		"floor":             "1",
		"room":              "B101",
		"title":             "Study group",
		"date":              "2025-06-10",
		"start_time":        "10:00",
		"end_time":          "11:00",
		"purpose":           "seminar",
		"participant_count": 10,
		"capacity":          40,
	}
}

func reservationOf(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	r, ok := resp["reservation"].(map[string]any)
	require.True(t, ok, "response has no reservation: %v", resp)
	return r
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, code, st.Code(), st.Message())
}

func TestReservationService_CreateConflictAndPreemption(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	resp, err := client.Call(ctx, grpcsvc.MethodCreateReservation, seminarRequest("s001"))
	require.NoError(t, err)
	first := reservationOf(t, resp)
	require.Equal(t, "pending", first["status"])
	require.Equal(t, "Tuesday", first["day_of_week"])
	require.Equal(t, true, resp["persisted"])

	_, err = client.Call(ctx, grpcsvc.MethodCreateReservation, seminarRequest("s002"))
	requireCode(t, err, codes.FailedPrecondition)
	st, _ := status.FromError(err)
	require.Equal(t, validation.ReasonSlotOccupied, st.Message())
	rule, ok := grpcsvc.RuleFromStatus(err)
	require.True(t, ok)
	require.Equal(t, validation.RuleDuplicate, rule)

	resp, err = client.Call(ctx, grpcsvc.MethodCreateReservation, seminarRequest("p005"))
	require.NoError(t, err)
	preempted, ok := resp["preempted"].([]any)
	require.True(t, ok)
	require.Len(t, preempted, 1)
	displaced := preempted[0].(map[string]any)
	require.Equal(t, first["id"], displaced["id"])
	require.Equal(t, "cancelled", displaced["status"])
	require.Equal(t, "cancelled due to seminar booking by faculty", displaced["cancellation_reason"])

	var notes []any
	require.Eventually(t, func() bool {
		resp, err := client.Call(ctx, grpcsvc.MethodListNotifications, map[string]any{"recipient": "s001"})
		if err != nil {
			return false
		}
		notes, _ = resp["notifications"].([]any)
		return len(notes) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, "cancelled", notes[0].(map[string]any)["kind"])
}

func TestReservationService_AdminCommandsWithUndoRedo(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	resp, err := client.Call(ctx, grpcsvc.MethodCreateReservation, seminarRequest("s001"))
	require.NoError(t, err)
	id := reservationOf(t, resp)["id"]

	resp, err = client.Call(ctx, grpcsvc.MethodApproveReservation, map[string]any{"id": id})
	require.NoError(t, err)
	require.Equal(t, "approved", reservationOf(t, resp)["status"])
	require.Equal(t, "approve reservation "+id.(string), resp["command"])

	_, err = client.Call(ctx, grpcsvc.MethodRejectReservation, map[string]any{"id": id, "reason": "late"})
	requireCode(t, err, codes.FailedPrecondition)

	resp, err = client.Call(ctx, grpcsvc.MethodUndo, nil)
	require.NoError(t, err)
	require.Equal(t, "pending", reservationOf(t, resp)["status"])

	resp, err = client.Call(ctx, grpcsvc.MethodGetHistory, nil)
	require.NoError(t, err)
	entries := resp["entries"].([]any)
	require.Len(t, entries, 1)
	require.Equal(t, true, entries[0].(map[string]any)["undone"])

	resp, err = client.Call(ctx, grpcsvc.MethodRedo, nil)
	require.NoError(t, err)
	require.Equal(t, "approved", reservationOf(t, resp)["status"])

	resp, err = client.Call(ctx, grpcsvc.MethodDeleteReservation, map[string]any{"id": id})
	require.NoError(t, err)
	require.Equal(t, id, reservationOf(t, resp)["id"])
	require.Equal(t, "cancelled", reservationOf(t, resp)["status"])
	require.Equal(t, "deleted by administrator", reservationOf(t, resp)["cancellation_reason"])
	require.Equal(t, "delete reservation "+id.(string)+": deleted by administrator", resp["command"])

	_, err = client.Call(ctx, grpcsvc.MethodApproveReservation, map[string]any{"id": id})
	requireCode(t, err, codes.NotFound)

	_, err = client.Call(ctx, grpcsvc.MethodResetHistory, nil)
	require.NoError(t, err)
	_, err = client.Call(ctx, grpcsvc.MethodUndo, nil)
	requireCode(t, err, codes.FailedPrecondition)
	_, err = client.Call(ctx, grpcsvc.MethodRedo, nil)
	requireCode(t, err, codes.FailedPrecondition)
}

func TestReservationService_InvalidRequests(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	missing := seminarRequest("s001")
	delete(missing, "room")
	_, err := client.Call(ctx, grpcsvc.MethodCreateReservation, missing)
	requireCode(t, err, codes.InvalidArgument)
	st, _ := status.FromError(err)
	require.Contains(t, st.Message(), "room")

	badPurpose := seminarRequest("s001")
	badPurpose["purpose"] = "party"
	_, err = client.Call(ctx, grpcsvc.MethodCreateReservation, badPurpose)
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.Call(ctx, grpcsvc.MethodCreateReservation, seminarRequest("x001"))
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.Call(ctx, grpcsvc.MethodApproveReservation, nil)
	requireCode(t, err, codes.InvalidArgument)
}

func TestReservationService_CancelOwnChecksOwner(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	resp, err := client.Call(ctx, grpcsvc.MethodCreateReservation, seminarRequest("s001"))
	require.NoError(t, err)
	id := reservationOf(t, resp)["id"]

	_, err = client.Call(ctx, grpcsvc.MethodCancelOwnReservation, map[string]any{"id": id, "requester_id": "s002"})
	requireCode(t, err, codes.PermissionDenied)

	_, err = client.Call(ctx, grpcsvc.MethodCancelOwnReservation, map[string]any{"id": id, "requester_id": "s001"})
	require.NoError(t, err)

	resp, err = client.Call(ctx, grpcsvc.MethodListPendingReservations, nil)
	require.NoError(t, err)
	require.Empty(t, resp["reservations"])
}

func TestReservationService_WeekGrids(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Call(ctx, grpcsvc.MethodCreateReservation, seminarRequest("s001"))
	require.NoError(t, err)

	resp, err := client.Call(ctx, grpcsvc.MethodGetRoomWeek, map[string]any{"building": "Engineering", "floor": "1", "room": "B101"})
	require.NoError(t, err)
	require.Equal(t, "2025-06-09", resp["from"])
	days := resp["days"].([]any)
	require.Len(t, days, 7)

	tuesday := days[1].(map[string]any)
	require.Equal(t, "Tuesday", tuesday["day"])
	periods := tuesday["periods"].([]any)
	require.Len(t, periods, 13)
	slot := periods[1].(map[string]any)
	require.Equal(t, "10:00", slot["start"])
	require.NotNil(t, slot["reservation"])
	require.Nil(t, periods[0].(map[string]any)["reservation"])

	resp, err = client.Call(ctx, grpcsvc.MethodGetRequesterWeek, map[string]any{"requester_id": "s002"})
	require.NoError(t, err)
	for _, d := range resp["days"].([]any) {
		for _, p := range d.(map[string]any)["periods"].([]any) {
			require.Nil(t, p.(map[string]any)["reservation"])
		}
	}

	resp, err = client.Call(ctx, grpcsvc.MethodListRequesterReservations, map[string]any{"requester_id": "s001"})
	require.NoError(t, err)
	require.Len(t, resp["reservations"], 1)
}
