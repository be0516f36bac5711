package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/audit"
	"github.com/google/uuid"
)

// Auditor records security-relevant actions. Append never fails from the
// caller's point of view.
type Auditor interface {
	Append(ctx context.Context, principalID, action, objectID string)
}

const auditWriteTimeout = 5 * time.Second

type queuedEntry struct {
	ctx   context.Context
	entry *models.AuditEntry
}

// AuditLedger queues entries on a bounded channel and writes them from a
// single background worker. A full queue drops the entry with a warning;
// write errors are logged and never reach the caller.
type AuditLedger struct {
	repo   audit.Repository
	logger logging.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan queuedEntry
	done   chan struct{}
}

var _ Auditor = (*AuditLedger)(nil)

// NewAuditLedger starts the worker. Close must be called to flush.
func NewAuditLedger(repo audit.Repository, logger logging.Logger, queueSize int) *AuditLedger {
	if queueSize <= 0 {
		queueSize = 1
	}
	l := &AuditLedger{
		repo:   repo,
		logger: logger.With("module", "audit"),
		now:    time.Now,
		queue:  make(chan queuedEntry, queueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *AuditLedger) Append(ctx context.Context, principalID, action, objectID string) {
	e := &models.AuditEntry{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		Action:      action,
		ObjectID:    objectID,
		CreatedAt:   l.now().UTC(),
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.logger.Warn(ctx, "audit ledger closed, entry dropped", "action", action, "principal_id", principalID)
		return
	}

	select {
	case l.queue <- queuedEntry{ctx: context.WithoutCancel(ctx), entry: e}:
	default:
		l.logger.Warn(ctx, "audit queue full, entry dropped", "action", action, "principal_id", principalID)
	}
}

func (l *AuditLedger) run() {
	defer close(l.done)
	for q := range l.queue {
		ctx, cancel := context.WithTimeout(q.ctx, auditWriteTimeout)
		if err := l.repo.Append(ctx, q.entry); err != nil {
			l.logger.Error(ctx, "audit write failed", "error", err, "action", q.entry.Action,
				"principal_id", q.entry.PrincipalID, "object_id", q.entry.ObjectID)
		}
		cancel()
	}
}

// Close stops accepting entries and waits until the queue is drained.
func (l *AuditLedger) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	<-l.done
}
