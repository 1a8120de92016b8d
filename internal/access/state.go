package access

import "time"

type State string

const (
	StateTrialActive   State = "TRIAL_ACTIVE"
	StateTrialEnded    State = "TRIAL_ENDED"
	StatePaidActive    State = "PAID_ACTIVE"
	StatePaymentFailed State = "PAYMENT_FAILED"
)

// Blocked reasons, as the front end expects them.
const (
	ReasonTrialEnded    = "trial_ended"
	ReasonPaymentFailed = "payment_failed"
)

// Evaluate derives the access state. Payment status wins over trial status.
func Evaluate(now, trialEndDate time.Time, hasPaid, isOverdue bool) State {
	switch {
	case hasPaid && !isOverdue:
		return StatePaidActive
	case hasPaid && isOverdue:
		return StatePaymentFailed
	case !now.Before(trialEndDate):
		return StateTrialEnded
	default:
		return StateTrialActive
	}
}

// AllowsCalls reports whether st may start new conversations.
func (st State) AllowsCalls() bool {
	return st == StateTrialActive || st == StatePaidActive
}

func (st State) reason() string {
	switch st {
	case StateTrialEnded:
		return ReasonTrialEnded
	case StatePaymentFailed:
		return ReasonPaymentFailed
	default:
		return ""
	}
}

// Decision is the gate outcome for one user.
type Decision struct {
	State        State     `json:"state"`
	AllowCalls   bool      `json:"allow_calls"`
	Reason       string    `json:"reason,omitempty"`
	TrialEndDate time.Time `json:"trial_end_date"`
	Admin        bool      `json:"admin,omitempty"`
}

func decide(st State, trialEnd time.Time, admin bool) Decision {
	d := Decision{State: st, AllowCalls: st.AllowsCalls(), Reason: st.reason(), TrialEndDate: trialEnd, Admin: admin}
	if admin {
		d.AllowCalls = true
		d.Reason = ""
	}
	return d
}
