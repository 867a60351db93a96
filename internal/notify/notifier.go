// Package notify announces accepted submissions to operators. Delivery is best-effort.
package notify

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"formflow/internal/common/logger"
	"formflow/internal/models"
)

// Notifier is told about each persisted submission.
type Notifier interface {
	SubmissionCreated(ctx context.Context, sub *models.Submission) error
}

type named struct {
	name     string
	notifier Notifier
}

// Multi fans a submission out to every registered notifier concurrently.
type Multi struct {
	targets []named
	logger  logger.Logger
}

func NewMulti(log logger.Logger) *Multi {
	return &Multi{logger: log.WithFields(map[string]interface{}{"component": "notify"})}
}

// Add registers a notifier under a name used in logs.
func (m *Multi) Add(name string, n Notifier) *Multi {
	m.targets = append(m.targets, named{name: name, notifier: n})
	return m
}

// Len reports how many notifiers are registered.
func (m *Multi) Len() int {
	return len(m.targets)
}

// SubmissionCreated returns the joined failures of all notifiers after each has been logged.
func (m *Multi) SubmissionCreated(ctx context.Context, sub *models.Submission) error {
	p := pool.New().WithErrors()
	for _, t := range m.targets {
		t := t
		p.Go(func() error {
			if err := t.notifier.SubmissionCreated(ctx, sub); err != nil {
				m.logger.Warn("notification failed", map[string]interface{}{
					"notifier":     t.name,
					"submissionId": sub.ID,
					"error":        err.Error(),
				})
				return fmt.Errorf("%s: %w", t.name, err)
			}
			return nil
		})
	}
	return p.Wait()
}

var _ Notifier = (*Multi)(nil)
