package pingflow

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/webtether/webtether/wallet"
)

// State of one ping attempt. The flow is strictly sequential, every transition
// is reported to the observer, Completed and Failed are terminal.
type State int

const (
	Idle State = iota
	CheckingPreconditions
	AwaitingSignature
	AwaitingConfirmation
	Confirmed
	Reporting
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CheckingPreconditions:
		return "checking-preconditions"
	case AwaitingSignature:
		return "awaiting-signature"
	case AwaitingConfirmation:
		return "awaiting-confirmation"
	case Confirmed:
		return "confirmed"
	case Reporting:
		return "reporting"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type (
	// Event is a state transition notification for the host UI. TxHash is set
	// from the moment a transaction has been submitted, Result on Completed,
	// Err on Failed.
	Event struct {
		State   State
		Message string
		TxHash  common.Hash
		Result  *wallet.PingResult
		Err     error
	}

	// Observer receives every state transition of a protocol run. A nil
	// observer is allowed. The observer must not block, the protocol calls it
	// synchronously.
	Observer func(e Event)
)
