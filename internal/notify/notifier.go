// Package notify fans task change events out to interested users. Delivery
// is best-effort and at-most-once: a recipient who is offline at dispatch
// time relies on the client's periodic refetch.
package notify

import (
	"log"
	"sync"

	"github.com/gofrs/uuid"

	"taskshare/backend/internal/access"
	"taskshare/backend/internal/models"
)

type EventType string

const (
	EventTaskCreated EventType = "task_created"
	EventTaskUpdated EventType = "task_updated"
	EventTaskDeleted EventType = "task_deleted"
	EventTaskShared  EventType = "task_shared"

	// EventTaskReminder is pushed when a task approaches its due date.
	EventTaskReminder EventType = "task_reminder"
)

// Event is the invalidation signal pushed to clients. Clients refetch rather
// than apply incremental state, so duplicate delivery is harmless.
type Event struct {
	Type    EventType `json:"type"`
	TaskID  uuid.UUID `json:"task_id"`
	ActorID uuid.UUID `json:"actor_id"`
	Summary string    `json:"summary"`
}

// Transport delivers one event to one user. Implementations must be safe for
// concurrent use.
type Transport interface {
	Publish(userID uuid.UUID, event Event) error
}

type Notifier struct {
	transport Transport
	wg        sync.WaitGroup
}

func NewNotifier(transport Transport) *Notifier {
	return &Notifier{transport: transport}
}

// Notify dispatches the event to every interested party of the task in
// parallel. For deletions the caller passes the pre-deletion snapshot.
// Transport failures are logged and never propagated: the mutation has
// already been persisted.
func (n *Notifier) Notify(eventType EventType, task *models.Task, actorID uuid.UUID) {
	event := Event{
		Type:    eventType,
		TaskID:  task.ID,
		ActorID: actorID,
		Summary: task.Title,
	}

	for _, userID := range access.InterestedParties(task) {
		n.wg.Add(1)
		go func(userID uuid.UUID) {
			defer n.wg.Done()
			if err := n.transport.Publish(userID, event); err != nil {
				log.Printf("notify: dropping %s for %s: %v", event.Type, userID, err)
			}
		}(userID)
	}
}

// Wait blocks until all in-flight dispatches have finished. Used on shutdown
// and in tests.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
