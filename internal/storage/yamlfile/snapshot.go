package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

const documentVersion = 1

type document struct {
	Version      int                 `yaml:"version"`
	SavedAt      time.Time           `yaml:"saved_at"`
	Reservations []reservationRecord `yaml:"reservations"`
}

type reservationRecord struct {
	ID                 string    `yaml:"id"`
	RequesterID        string    `yaml:"requester_id"`
	RequesterRole      string    `yaml:"requester_role"`
	Building           string    `yaml:"building"`
	Floor              string    `yaml:"floor"`
	Room               string    `yaml:"room"`
	Title              string    `yaml:"title,omitempty"`
	Description        string    `yaml:"description,omitempty"`
	Date               string    `yaml:"date"`
	DayOfWeek          string    `yaml:"day_of_week,omitempty"`
	StartTime          string    `yaml:"start_time"`
	EndTime            string    `yaml:"end_time"`
	Purpose            string    `yaml:"purpose"`
	ParticipantCount   int       `yaml:"participant_count"`
	Capacity           int       `yaml:"capacity"`
	Status             string    `yaml:"status"`
	RejectionReason    string    `yaml:"rejection_reason,omitempty"`
	CancellationReason string    `yaml:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `yaml:"created_at"`
	UpdatedAt          time.Time `yaml:"updated_at"`
}

// SnapshotFile реализует порт персистентности поверх одного YAML-файла.
// Запись идёт во временный файл с последующим rename.
type SnapshotFile struct {
	mu     sync.Mutex
	path   string
	logger *log.Entry
}

// New создаёт файловый порт. Каталог создаётся при первой записи.
func New(path string, logger *log.Entry) *SnapshotFile {
	if logger == nil {
		logger = log.WithField("component", "yaml-snapshot")
	}
	return &SnapshotFile{path: path, logger: logger}
}

// Path возвращает путь к файлу снапшота.
func (f *SnapshotFile) Path() string {
	return f.path
}

// LoadAll читает снапшот; отсутствующий файл означает пустой набор.
func (f *SnapshotFile) LoadAll(_ context.Context) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", f.path, err)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", f.path, err)
	}
	if doc.Version != 0 && doc.Version != documentVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", doc.Version)
	}

	result := make([]domain.Reservation, 0, len(doc.Reservations))
	for _, rec := range doc.Reservations {
		result = append(result, rec.toDomain())
	}
	return result, nil
}

// SaveAll атомарно перезаписывает файл снапшота.
func (f *SnapshotFile) SaveAll(ctx context.Context, reservations []domain.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := document{
		Version:      documentVersion,
		SavedAt:      time.Now().UTC(),
		Reservations: make([]reservationRecord, 0, len(reservations)),
	}
	for _, r := range reservations {
		doc.Reservations = append(doc.Reservations, fromDomain(r))
	}

	raw, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}

	f.logger.WithField("count", len(reservations)).Debug("snapshot written")
	return nil
}

func fromDomain(r domain.Reservation) reservationRecord {
	return reservationRecord{
		ID:                 r.ID,
		RequesterID:        r.RequesterID,
		RequesterRole:      string(r.RequesterRole),
		Building:           r.Building,
		Floor:              r.Floor,
		Room:               r.Room,
		Title:              r.Title,
		Description:        r.Description,
		Date:               r.Date,
		DayOfWeek:          r.DayOfWeek,
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
		Purpose:            string(r.Purpose),
		ParticipantCount:   r.ParticipantCount,
		Capacity:           r.Capacity,
		Status:             string(r.Status),
		RejectionReason:    r.RejectionReason,
		CancellationReason: r.CancellationReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func (rec reservationRecord) toDomain() domain.Reservation {
	role := domain.Role(rec.RequesterRole)
	if role == "" {
		role = domain.RoleOf(rec.RequesterID)
	}
	return domain.Reservation{
		ID:            rec.ID,
		RequesterID:   rec.RequesterID,
		RequesterRole: role,
		Details: domain.Details{
			Location:         domain.Location{Building: rec.Building, Floor: rec.Floor, Room: rec.Room},
			Title:            rec.Title,
			Description:      rec.Description,
			Date:             rec.Date,
			DayOfWeek:        rec.DayOfWeek,
			StartTime:        rec.StartTime,
			EndTime:          rec.EndTime,
			Purpose:          domain.Purpose(rec.Purpose),
			ParticipantCount: rec.ParticipantCount,
			Capacity:         rec.Capacity,
		},
		Status:             domain.ReservationStatus(rec.Status),
		RejectionReason:    rec.RejectionReason,
		CancellationReason: rec.CancellationReason,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
}

var _ domain.SnapshotStore = (*SnapshotFile)(nil)
