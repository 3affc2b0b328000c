package reconcile

import (
	"time"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
	"github.com/sacrosaunt/churnchurnchurn/internal/refresh"
)

// Message is anything the engine loop consumes. Timers and user commands
// both arrive as messages, so every state change happens on the loop
// goroutine.
type Message interface {
	message()
}

// Scheduler delivers msg to the engine after d. Implementations must not
// act on engine state themselves.
type Scheduler interface {
	After(d time.Duration, msg Message)
}

type timerScheduler struct {
	post func(Message)
}

func (s timerScheduler) After(d time.Duration, msg Message) {
	time.AfterFunc(d, func() { s.post(msg) })
}

type result struct {
	offer    models.Offer
	snapshot Snapshot
	err      error
}

type (
	pollMsg struct {
		gen uint64
	}
	detailRenderMsg struct {
		offerID int
	}
	settleMsg struct {
		key refresh.Key
	}

	submitMsg struct {
		req   models.CreateOfferRequest
		reply chan result
	}
	reprocessMsg struct {
		id    int
		reply chan result
	}
	refreshFieldMsg struct {
		id    int
		field string
		reply chan result
	}
	updateStatusMsg struct {
		id    int
		key   offerstate.StatusKey
		reply chan result
	}
	setURLMsg struct {
		id    int
		url   string
		reply chan result
	}
	deleteMsg struct {
		id    int
		reply chan result
	}
	focusMsg struct {
		id    int
		reply chan result
	}
	blurMsg struct {
		reply chan result
	}
	kickMsg struct {
		reply chan result
	}
	snapshotMsg struct {
		reply chan result
	}
)

func (pollMsg) message()         {}
func (detailRenderMsg) message() {}
func (settleMsg) message()       {}
func (submitMsg) message()       {}
func (reprocessMsg) message()    {}
func (refreshFieldMsg) message() {}
func (updateStatusMsg) message() {}
func (setURLMsg) message()       {}
func (deleteMsg) message()       {}
func (focusMsg) message()        {}
func (blurMsg) message()         {}
func (kickMsg) message()         {}
func (snapshotMsg) message()     {}

// Snapshot is a read-only view of engine state.
type Snapshot struct {
	Offers    []models.Offer   `json:"offers"`
	Focused   int              `json:"focused,omitempty"`
	Refreshes []refresh.Status `json:"refreshes"`
	Polling   bool             `json:"polling"`
	Failing   bool             `json:"failing"`
}
