package command

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/roombook/internal/domain"
)

// Handler применяет и откатывает команды над хранилищем.
//
// Apply возвращает команду с заполненным состоянием для отката.
// Ошибка, оборачивающая domain.ErrNotPersisted, означает, что изменение
// действует в памяти; Invoker учитывает такую команду как выполненную.
type Handler interface {
	Apply(ctx context.Context, cmd Command) (Command, error)
	Revert(ctx context.Context, cmd Command) error
}

// Recorder получает итог каждой операции Invoker (метрики).
type Recorder interface {
	RecordCommand(kind, operation, result string)
}

// Operation называет операцию Invoker в журналах и метриках.
const (
	OperationExecute = "execute"
	OperationUndo    = "undo"
	OperationRedo    = "redo"
)

// Entry — строка истории команд.
type Entry struct {
	Kind        Kind
	Description string
	Undone      bool
}

// Invoker хранит два стека: выполненные и отменённые команды.
// Все операции сериализованы; неудачная попытка не меняет стеки.
type Invoker struct {
	mu       sync.Mutex
	handler  Handler
	executed []Command
	undone   []Command
	recorder Recorder
	logger   *log.Entry
}

// InvokerOption настраивает Invoker.
type InvokerOption func(*Invoker)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) InvokerOption {
	return func(i *Invoker) {
		i.logger = logger
	}
}

// WithRecorder подключает метрики.
func WithRecorder(r Recorder) InvokerOption {
	return func(i *Invoker) {
		i.recorder = r
	}
}

// NewInvoker создаёт Invoker поверх handler.
func NewInvoker(handler Handler, opts ...InvokerOption) *Invoker {
	inv := &Invoker{handler: handler}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.logger == nil {
		inv.logger = log.WithField("component", "command-invoker")
	}
	return inv
}

// Execute применяет команду; при успехе кладёт её в executed и очищает undone.
func (i *Invoker) Execute(ctx context.Context, cmd Command) (Command, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	applied, err := i.handler.Apply(ctx, cmd)
	if err != nil && !domain.IsNotPersisted(err) {
		i.record(cmd, OperationExecute, err)
		return cmd, err
	}
	i.executed = append(i.executed, applied)
	i.undone = nil
	i.record(applied, OperationExecute, err)
	i.logger.WithField("command", applied.Describe()).Debug("command executed")
	return applied, err
}

// Undo откатывает последнюю выполненную команду.
// При ошибке команда остаётся на вершине executed.
func (i *Invoker) Undo(ctx context.Context) (Command, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.executed) == 0 {
		return nil, domain.ErrNothingToUndo
	}
	cmd := i.executed[len(i.executed)-1]

	err := i.handler.Revert(ctx, cmd)
	if err != nil && !domain.IsNotPersisted(err) {
		i.record(cmd, OperationUndo, err)
		return cmd, err
	}
	i.executed = i.executed[:len(i.executed)-1]
	i.undone = append(i.undone, cmd)
	i.record(cmd, OperationUndo, err)
	i.logger.WithField("command", cmd.Describe()).Debug("command undone")
	return cmd, err
}

// Redo повторно применяет последнюю отменённую команду.
// При ошибке команда остаётся на вершине undone.
func (i *Invoker) Redo(ctx context.Context) (Command, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if len(i.undone) == 0 {
		return nil, domain.ErrNothingToRedo
	}
	cmd := i.undone[len(i.undone)-1]

	applied, err := i.handler.Apply(ctx, cmd)
	if err != nil && !domain.IsNotPersisted(err) {
		i.record(cmd, OperationRedo, err)
		return cmd, err
	}
	i.undone = i.undone[:len(i.undone)-1]
	i.executed = append(i.executed, applied)
	i.record(applied, OperationRedo, err)
	i.logger.WithField("command", applied.Describe()).Debug("command redone")
	return applied, err
}

// Reset очищает оба стека.
func (i *Invoker) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.executed = nil
	i.undone = nil
}

// History возвращает выполненные команды от старых к новым, затем отменённые от последней отмены к первой.
func (i *Invoker) History() []Entry {
	i.mu.Lock()
	defer i.mu.Unlock()

	entries := make([]Entry, 0, len(i.executed)+len(i.undone))
	for _, cmd := range i.executed {
		entries = append(entries, Entry{Kind: cmd.Kind(), Description: cmd.Describe()})
	}
	for idx := len(i.undone) - 1; idx >= 0; idx-- {
		cmd := i.undone[idx]
		entries = append(entries, Entry{Kind: cmd.Kind(), Description: cmd.Describe(), Undone: true})
	}
	return entries
}

// Depth возвращает размеры стеков executed и undone.
func (i *Invoker) Depth() (executed, undone int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.executed), len(i.undone)
}

func (i *Invoker) record(cmd Command, operation string, err error) {
	if i.recorder == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case domain.IsNotPersisted(err):
		result = "not_persisted"
	default:
		result = "error"
	}
	i.recorder.RecordCommand(string(cmd.Kind()), operation, result)
}
