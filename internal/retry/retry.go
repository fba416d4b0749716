package retry

import "time"

// Outcome classifies one finished HTTP attempt. Any non-2xx status,
// timeout, connection error or DNS failure is a Failure; retryability does
// not depend on which.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

// Action is what the worker does next with the lineage.
type Action int

const (
	Succeed Action = iota
	Retry
	DeadLetter
)

func (a Action) String() string {
	switch a {
	case Succeed:
		return "succeed"
	case Retry:
		return "retry"
	case DeadLetter:
		return "deadletter"
	default:
		return "unknown"
	}
}

// Decision pairs the action with the scheduling delay when Action == Retry.
type Decision struct {
	Action Action
	Delay  time.Duration
}

// Backoff returns the delay scheduled after the given attempt failed:
// 2^attempt seconds, so 2s after attempt 1, 4s after attempt 2, 8s after
// attempt 3. No jitter and no cap; maxAttempts bounds the largest exponent.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

// NextState is the single transition function of the attempt state machine:
// ATTEMPT_1 → ATTEMPT_2 → ... → ATTEMPT_N → {SUCCEEDED | DEAD_LETTERED}.
// Succeed is reachable from any attempt; DeadLetter only once the attempt
// that just finished was the last one allowed.
func NextState(attempt, maxAttempts int, outcome Outcome) Decision {
	if outcome == OutcomeSuccess {
		return Decision{Action: Succeed}
	}
	if attempt < maxAttempts {
		return Decision{Action: Retry, Delay: Backoff(attempt)}
	}
	return Decision{Action: DeadLetter}
}
