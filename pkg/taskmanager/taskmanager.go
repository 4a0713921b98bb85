package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrTooManyTasks возвращается, когда достигнут предел активных задач.
	ErrTooManyTasks = errors.New("превышено максимальное количество активных задач")
	// ErrShuttingDown возвращается после начала остановки менеджера.
	ErrShuttingDown = errors.New("менеджер задач останавливается")
	// ErrTaskNotFound возвращается для неизвестного ID.
	ErrTaskNotFound = errors.New("задача не найдена")
	// ErrDuplicateTask возвращается, если задача с таким ID еще не завершена.
	ErrDuplicateTask = errors.New("задача с таким ID уже выполняется")
)

// Notifier доставляет обновления задачи владельцу (WebSocket).
type Notifier interface {
	SendToUser(userID, messageType, topic string, payload interface{})
}

// Task представляет асинхронную задачу
type Task struct {
	ID        string
	OwnerID   string
	Status    TaskStatus
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskStatus представляет статус задачи
type TaskStatus string

// Возможные статусы задач. Отмена не поддерживается.
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

func (s TaskStatus) active() bool {
	return s == TaskStatusPending || s == TaskStatusRunning
}

// TaskFunc представляет функцию, выполняемую в задаче
type TaskFunc func(ctx context.Context) error

// Config содержит конфигурацию для TaskManager
type Config struct {
	MaxActiveTasks int
}

// TaskManager запускает задачи в фоне с ограничением числа активных.
type TaskManager struct {
	tasks    map[string]*Task
	mu       sync.RWMutex
	maxTasks int
	closing  bool
	wg       sync.WaitGroup
	notifier Notifier
	logger   *zap.Logger
}

// New создает новый экземпляр TaskManager
func New(cfg Config, logger *zap.Logger) *TaskManager {
	maxTasks := cfg.MaxActiveTasks
	if maxTasks <= 0 {
		maxTasks = 10
	}
	return &TaskManager{
		tasks:    make(map[string]*Task),
		maxTasks: maxTasks,
		logger:   logger.Named("TaskManager"),
	}
}

// SetNotifier устанавливает получателя уведомлений о статусе задач.
func (tm *TaskManager) SetNotifier(n Notifier) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.notifier = n
}

// Submit запускает fn под идентификатором taskID.
// Контекст задачи не зависит от контекста запроса: задача переживает HTTP-ответ.
func (tm *TaskManager) Submit(taskID, ownerID string, fn TaskFunc) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.closing {
		return ErrShuttingDown
	}
	if existing, ok := tm.tasks[taskID]; ok && existing.Status.active() {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, taskID)
	}
	if tm.activeLocked() >= tm.maxTasks {
		return ErrTooManyTasks
	}

	now := time.Now()
	task := &Task{
		ID:        taskID,
		OwnerID:   ownerID,
		Status:    TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tm.tasks[taskID] = task

	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		tm.runTask(task, fn)
	}()
	return nil
}

func (tm *TaskManager) activeLocked() int {
	n := 0
	for _, t := range tm.tasks {
		if t.Status.active() {
			n++
		}
	}
	return n
}

// ActiveCount возвращает число незавершенных задач.
func (tm *TaskManager) ActiveCount() int {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.activeLocked()
}

// runTask выполняет задачу и обновляет ее статус
func (tm *TaskManager) runTask(task *Task, fn TaskFunc) {
	log := tm.logger.With(zap.String("task_id", task.ID), zap.String("owner_id", task.OwnerID))
	tm.updateTaskStatus(task, TaskStatusRunning, "Задача запущена")

	defer func() {
		if r := recover(); r != nil {
			log.Error("Task panicked", zap.Any("panic", r))
			tm.updateTaskStatus(task, TaskStatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := fn(context.Background()); err != nil {
		log.Warn("Task finished with error", zap.Error(err))
		tm.updateTaskStatus(task, TaskStatusFailed, err.Error())
		return
	}
	log.Info("Task completed")
	tm.updateTaskStatus(task, TaskStatusCompleted, "Задача успешно выполнена")
}

// updateTaskStatus обновляет статус задачи и отправляет уведомление владельцу
func (tm *TaskManager) updateTaskStatus(task *Task, status TaskStatus, message string) {
	tm.mu.Lock()
	task.Status = status
	task.Message = message
	task.UpdatedAt = time.Now()
	snapshot := *task
	notifier := tm.notifier
	tm.mu.Unlock()

	if notifier != nil && snapshot.OwnerID != "" {
		notifier.SendToUser(snapshot.OwnerID, "task_update", "tasks", map[string]interface{}{
			"task_id":    snapshot.ID,
			"status":     snapshot.Status,
			"message":    snapshot.Message,
			"updated_at": snapshot.UpdatedAt,
		})
	}
	tm.logger.Debug("Task status updated",
		zap.String("task_id", snapshot.ID),
		zap.String("status", string(snapshot.Status)))
}

// GetTask возвращает копию задачи по ID
func (tm *TaskManager) GetTask(taskID string) (Task, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	task, ok := tm.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return *task, nil
}

// CleanupTasks удаляет завершенные задачи, которые старше указанного времени
func (tm *TaskManager) CleanupTasks(age time.Duration) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, task := range tm.tasks {
		if !task.Status.active() && now.Sub(task.UpdatedAt) > age {
			delete(tm.tasks, id)
			removed++
		}
	}
	return removed
}

// RunCleanup периодически вызывает CleanupTasks, пока ctx не завершится.
func (tm *TaskManager) RunCleanup(ctx context.Context, retention time.Duration) {
	ticker := time.NewTicker(retention)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := tm.CleanupTasks(retention); n > 0 {
				tm.logger.Debug("Finished tasks cleaned up", zap.Int("removed", n))
			}
		}
	}
}

// Shutdown запрещает новые задачи и ожидает завершения текущих с таймаутом
func (tm *TaskManager) Shutdown(ctx context.Context) error {
	tm.mu.Lock()
	tm.closing = true
	tm.mu.Unlock()

	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("таймаут при ожидании завершения задач (активных: %d): %w", tm.ActiveCount(), ctx.Err())
	}
}
