package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"webintel-server/internal/model"
)

// RunFunc выполняет работу задачи и возвращает ссылку на готовый артефакт.
type RunFunc func(ctx context.Context, jobID string) (outputRef string, err error)

// ArtifactPurger удаляет артефакты задачи из хранилища результатов.
type ArtifactPurger interface {
	Purge(jobID string) error
}

// IManager определяет интерфейс для управления задачами пайплайна
type IManager interface {
	Start(ctx context.Context, run RunFunc) (string, error)
	Get(jobID string) (model.Job, error)
	List() []model.Job
	Delete(jobID string) error
	CleanupJobs(age time.Duration)
	Shutdown(ctx context.Context) error
}

// Manager управляет асинхронными задачами пайплайна.
// Каждая задача выполняется в собственной горутине с независимым контекстом.
type Manager struct {
	jobs    map[string]*model.Job
	cancels map[string]context.CancelFunc
	mu      sync.RWMutex
	maxJobs int
	purger  ArtifactPurger
	closing chan struct{}
	wg      sync.WaitGroup
}

// Config содержит конфигурацию для Manager
type Config struct {
	MaxJobs int
}

// New создает новый экземпляр Manager.
func New(cfg Config, purger ArtifactPurger) *Manager {
	maxJobs := cfg.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 10
	}
	return &Manager{
		jobs:    make(map[string]*model.Job),
		cancels: make(map[string]context.CancelFunc),
		maxJobs: maxJobs,
		purger:  purger,
		closing: make(chan struct{}),
	}
}

// Start регистрирует новую задачу и запускает ее выполнение.
// Возвращает model.ErrJobLimitReached, если активных задач слишком много.
func (m *Manager) Start(ctx context.Context, run RunFunc) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.closing:
		return "", errors.New("менеджер задач завершает работу")
	default:
	}

	// Проверка лимита активных задач (под блокировкой)
	active := 0
	for _, j := range m.jobs {
		if !j.Status.Terminal() {
			active++
		}
	}
	if active >= m.maxJobs {
		return "", model.ErrJobLimitReached
	}

	jobID := uuid.NewString()

	// Независимый контекст: задача переживает HTTP-запрос, который ее создал.
	// Логгер zerolog переносится из контекста запроса.
	baseCtx, cancel := context.WithCancel(context.Background())
	jobLogger := log.Ctx(ctx)
	jobCtx := jobLogger.WithContext(baseCtx)

	m.jobs[jobID] = &model.Job{
		ID:        jobID,
		Status:    model.JobStatusPending,
		Message:   "Job queued",
		CreatedAt: time.Now().UTC(),
	}
	m.cancels[jobID] = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.runJob(jobCtx, jobID, run)
	}()

	return jobID, nil
}

// runJob выполняет задачу и фиксирует терминальный статус.
// Каждый переход проверяет, что задача еще существует: удаленная задача
// не воскрешается, а ее поздний артефакт удаляется из хранилища.
func (m *Manager) runJob(ctx context.Context, jobID string, run RunFunc) {
	if !m.transition(jobID, func(j *model.Job) {
		j.Status = model.JobStatusRunning
		j.Message = "Pipeline is running"
	}) {
		log.Ctx(ctx).Info().Str("jobID", jobID).Msg("Задача удалена до запуска, выполнение пропущено")
		return
	}
	log.Ctx(ctx).Info().Str("jobID", jobID).Msg("Задача запущена")

	outputRef, err := run(ctx, jobID)

	now := time.Now().UTC()
	var alive bool
	if err != nil {
		alive = m.transition(jobID, func(j *model.Job) {
			j.Status = model.JobStatusFailed
			j.Message = "Pipeline failed"
			j.Error = err.Error()
			j.CompletedAt = &now
		})
		if alive {
			log.Ctx(ctx).Error().Err(err).Str("jobID", jobID).Msg("Задача завершилась с ошибкой")
		}
	} else {
		alive = m.transition(jobID, func(j *model.Job) {
			j.Status = model.JobStatusCompleted
			j.Message = "Pipeline completed successfully"
			j.OutputFile = outputRef
			j.CompletedAt = &now
		})
		if alive {
			log.Ctx(ctx).Info().Str("jobID", jobID).Str("output", outputRef).Msg("Задача успешно выполнена")
		}
	}

	if !alive {
		// Задача была удалена во время выполнения: результат игнорируется,
		// осиротевший артефакт подчищается.
		log.Ctx(ctx).Info().Str("jobID", jobID).Msg("Задача удалена во время выполнения, результат отброшен")
		if err == nil && outputRef != "" && m.purger != nil {
			if perr := m.purger.Purge(jobID); perr != nil {
				log.Ctx(ctx).Warn().Err(perr).Str("jobID", jobID).Msg("Не удалось удалить осиротевший артефакт")
			}
		}
	}
}

// transition применяет мутацию к задаче, если она все еще зарегистрирована.
func (m *Manager) transition(jobID string, mutate func(*model.Job)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return false
	}
	mutate(job)
	return true
}

// Get возвращает снимок состояния задачи по ID.
func (m *Manager) Get(jobID string) (model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return model.Job{}, model.ErrNotFound
	}
	return *job, nil
}

// List возвращает снимки всех задач, новые первыми.
func (m *Manager) List() []model.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Delete удаляет задачу в любом статусе. Выполняющаяся задача получает
// отмену контекста, ее поздний результат будет проигнорирован.
func (m *Manager) Delete(jobID string) error {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return model.ErrNotFound
	}
	if cancel, ok := m.cancels[jobID]; ok && !job.Status.Terminal() {
		cancel()
	}
	delete(m.jobs, jobID)
	delete(m.cancels, jobID)
	m.mu.Unlock()

	if m.purger != nil {
		if err := m.purger.Purge(jobID); err != nil {
			return err
		}
	}
	return nil
}

// CleanupJobs удаляет завершенные задачи, которые старше указанного времени.
func (m *Manager) CleanupJobs(age time.Duration) {
	now := time.Now().UTC()
	var expired []string

	m.mu.Lock()
	for id, job := range m.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && now.Sub(*job.CompletedAt) > age {
			delete(m.jobs, id)
			delete(m.cancels, id)
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	if m.purger != nil {
		for _, id := range expired {
			if err := m.purger.Purge(id); err != nil {
				log.Warn().Err(err).Str("jobID", id).Msg("Не удалось удалить артефакты устаревшей задачи")
			}
		}
	}
}

// Shutdown отменяет активные задачи и ожидает завершения всех горутин.
func (m *Manager) Shutdown(ctx context.Context) error {
	close(m.closing)

	m.mu.Lock()
	for id, job := range m.jobs {
		if !job.Status.Terminal() {
			if cancel, ok := m.cancels[id]; ok {
				cancel()
			}
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("таймаут при ожидании завершения задач")
	}
}
