package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	grpcsvc "github.com/vladislavdragonenkov/roombook/internal/service/grpc"
)

type loadMode string

const (
	modeCreate              loadMode = "create"
	modeCreateApprove       loadMode = "create-approve"
	modeCreateApproveDelete loadMode = "create-approve-delete"
	modePreempt             loadMode = "preempt"
)

const (
	defaultStart = "10:00"
	defaultEnd   = "12:00"
)

// caller описывает минимальный клиент сервиса; его реализует *grpcsvc.Client.
type caller interface {
	Call(ctx context.Context, name string, req map[string]any, opts ...grpc.CallOption) (map[string]any, error)
}

type config struct {
	addr         string
	total        int
	totalSet     bool
	duration     time.Duration
	concurrency  int
	connections  int
	timeout      time.Duration
	mode         loadMode
	building     string
	date         string
	requesterTag string
	outputPath   string
}

func parseConfig(args []string, now time.Time) (config, error) {
	cfg := config{}
	var modeValue string

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "scenarios to run; with -duration only a cap when set explicitly")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-approve | create-approve-delete | preempt")
	fs.StringVar(&cfg.building, "building", "LOAD", "building for generated reservations")
	fs.StringVar(&cfg.date, "date", now.AddDate(0, 0, 1).Format("2006-01-02"), "reservation date (YYYY-MM-DD)")
	fs.StringVar(&cfg.requesterTag, "requester-tag", "load", "suffix of generated requester ids")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case strings.TrimSpace(cfg.building) == "":
		return cfg, errors.New("building is required")
	case strings.TrimSpace(cfg.requesterTag) == "":
		return cfg, errors.New("requester-tag is required")
	}
	if _, err := time.Parse("2006-01-02", cfg.date); err != nil {
		return cfg, fmt.Errorf("parse date: %w", err)
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch m := loadMode(strings.TrimSpace(value)); m {
	case modeCreate, modeCreateApprove, modeCreateApproveDelete, modePreempt:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig(os.Args[1:], time.Now().UTC())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	result, err := run(cfg, os.Stdout)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}

func run(cfg config, out io.Writer) (report, error) {
	clients := make([]caller, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, err := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return report{}, fmt.Errorf("create grpc client connection: %w", err)
		}
		defer conn.Close()
		clients = append(clients, grpcsvc.NewClient(conn))
	}

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func(cli caller) {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(cli, cfg, id, runID, col)
			}
		}(clients[w%len(clients)])
	}
	dispatchJobs(jobs, cfg)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	printReport(out, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			return result, fmt.Errorf("write report: %w", err)
		}
	}
	return result, nil
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()
	for i := 0; !cfg.totalSet || i < cfg.total; i++ {
		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// runScenario прогоняет один сценарий; каждый сценарий получает свою аудиторию,
// чтобы параллельные сценарии не конфликтовали по слоту.
func runScenario(cli caller, cfg config, index int, runID string, col *collector) (err error) {
	started := time.Now()
	defer func() {
		col.record(scenarioKey, time.Since(started), grpcCode(err))
	}()

	room := fmt.Sprintf("R-%s-%d", runID, index)
	student := fmt.Sprintf("s-%s-%s-%d", cfg.requesterTag, runID, index)

	created, err := invoke(cli, cfg.timeout, grpcsvc.MethodCreateReservation,
		reservationRequest(cfg, student, room, "group-study"), col)
	if err != nil {
		return err
	}
	id := reservationID(created)
	if id == "" {
		return status.Error(codes.Internal, "create response returned empty reservation id")
	}

	switch cfg.mode {
	case modeCreate:
		return nil
	case modePreempt:
		professor := fmt.Sprintf("p-%s-%s-%d", cfg.requesterTag, runID, index)
		resp, err := invoke(cli, cfg.timeout, grpcsvc.MethodCreateReservation,
			reservationRequest(cfg, professor, room, "seminar"), col)
		if err != nil {
			return err
		}
		if preempted, _ := resp["preempted"].([]any); len(preempted) != 1 {
			return status.Errorf(codes.Internal, "expected 1 preempted reservation, got %d", len(preempted))
		}
		return nil
	}

	if _, err := invoke(cli, cfg.timeout, grpcsvc.MethodApproveReservation, map[string]any{"id": id}, col); err != nil {
		return err
	}
	if cfg.mode == modeCreateApproveDelete {
		_, err = invoke(cli, cfg.timeout, grpcsvc.MethodDeleteReservation,
			map[string]any{"id": id, "reason": "load test cleanup"}, col)
	}
	return err
}

func reservationRequest(cfg config, requester, room, purpose string) map[string]any {
	return map[string]any{
		"requester_id":      requester,
		"building":          cfg.building,
		"room":              room,
		"title":             "load test",
		"date":              cfg.date,
		"start_time":        defaultStart,
		"end_time":          defaultEnd,
		"purpose":           purpose,
		"participant_count": 1,
		"capacity":          10,
	}
}

func invoke(cli caller, timeout time.Duration, method string, req map[string]any, col *collector) (map[string]any, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := cli.Call(ctx, method, req)
	col.record(method, time.Since(start), grpcCode(err))
	return resp, err
}

func reservationID(resp map[string]any) string {
	r, _ := resp["reservation"].(map[string]any)
	id, _ := r["id"].(string)
	return id
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}
