package model

import "time"

// JobStatus представляет статус задачи пайплайна
type JobStatus string

// Возможные статусы задач
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal сообщает, является ли статус конечным.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job — снимок состояния одной задачи анализа страницы.
// Поля JSON совпадают с контрактом API (/api/pipeline/*).
type Job struct {
	ID          string     `json:"job_id"`
	Status      JobStatus  `json:"status"`
	Message     string     `json:"message"`
	OutputFile  string     `json:"output_file,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
