package settle

import (
	"time"

	"github.com/looplab/fsm"

	"patronpress/app/models"
)

// Settlement states. Terminal once recorded or failed; no retries.
const (
	StateValidated       = "validated"
	StateTransferPending = "transfer_pending"
	StateRecorded        = "recorded"
	StateTransferFailed  = "transfer_failed"
)

// Settlement events.
const (
	EventInitiate = "initiate"
	EventRecord   = "record"
	EventFail     = "fail"
)

// newSettlementState builds the per-donation state machine:
// validated → transfer_pending → {recorded | transfer_failed}.
func newSettlementState() *fsm.FSM {
	return fsm.NewFSM(
		StateValidated,
		fsm.Events{
			{Name: EventInitiate, Src: []string{StateValidated}, Dst: StateTransferPending},
			{Name: EventRecord, Src: []string{StateTransferPending}, Dst: StateRecorded},
			{Name: EventFail, Src: []string{StateTransferPending}, Dst: StateTransferFailed},
		},
		fsm.Callbacks{},
	)
}

// Settlement is the durable record of one donation's progress through the
// transfer-then-record flow, keyed by a correlation ID. DonationID is set
// once the log entry exists; Error carries the terminal failure cause.
type Settlement struct {
	ID          string         `json:"id"`
	PostID      uint64         `json:"post_id"`
	Donor       models.Account `json:"donor"`
	Recipient   models.Account `json:"recipient"`
	Amount      models.Amount  `json:"amount"`
	Message     string         `json:"message,omitempty"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	DonationID  *uint64        `json:"donation_id,omitempty"`
	InitiatedAt time.Time      `json:"initiated_at"`
	SettledAt   time.Time      `json:"settled_at"`
}
