package domain

// PaymentStep tracks where the redirect payment flow currently is. The flow
// lives through a full browser navigation, so a fresh run that observes
// callback parameters enters CAPTURING directly from INITIAL.
type PaymentStep string

const (
	PaymentStepInitial     PaymentStep = "INITIAL"
	PaymentStepProcessing  PaymentStep = "PROCESSING"
	PaymentStepRedirecting PaymentStep = "REDIRECTING"
	PaymentStepCapturing   PaymentStep = "CAPTURING"
	PaymentStepConfirmed   PaymentStep = "CONFIRMED"
	PaymentStepFailed      PaymentStep = "FAILED"
)

func (s PaymentStep) IsTerminal() bool {
	return s == PaymentStepConfirmed || s == PaymentStepFailed
}

// String representation (for logging)
func (s PaymentStep) String() string {
	return string(s)
}

var paymentTransitions = map[PaymentStep][]PaymentStep{
	PaymentStepInitial:     {PaymentStepProcessing, PaymentStepCapturing},
	PaymentStepProcessing:  {PaymentStepRedirecting, PaymentStepInitial},
	PaymentStepRedirecting: {PaymentStepCapturing, PaymentStepInitial},
	PaymentStepCapturing:   {PaymentStepConfirmed, PaymentStepFailed},
}

// CanTransitionTo reports whether the flow may move from one step to
// another. Terminal steps only leave via an explicit reset.
func CanTransitionTo(from, to PaymentStep) bool {
	for _, allowed := range paymentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
