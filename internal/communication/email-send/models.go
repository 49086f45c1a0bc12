package emailsend

import (
	"time"

	"incompat-report/internal/common/logger"
)

type Input struct {
	Body  string `json:"body"`
	RunID string `json:"runId,omitempty"`
}

type Output struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	MessageID string    `json:"messageId,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	SentAt    time.Time `json:"sentAt,omitempty"`
}

type ServiceDependencies struct {
	Logger logger.Logger
}
