package preview

import "strconv"

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePending Phase = "pending"
	PhaseSettled Phase = "settled"
)

// State is what the booking form renders. Error and Price are never both
// set; Loading is true only while Phase is pending.
type State struct {
	Phase      Phase    `json:"phase"`
	Loading    bool     `json:"loading"`
	Error      *string  `json:"error"`
	Price      *float64 `json:"price"`
	Generation uint64   `json:"generation"`
}

func idleState(generation uint64) State {
	return State{Phase: PhaseIdle, Generation: generation}
}

func pendingState(generation uint64) State {
	return State{Phase: PhasePending, Loading: true, Generation: generation}
}

func priceState(generation uint64, price float64) State {
	return State{Phase: PhaseSettled, Price: &price, Generation: generation}
}

func errorState(generation uint64, msg string) State {
	return State{Phase: PhaseSettled, Error: &msg, Generation: generation}
}

const loadingText = "Calculating price..."

// Render produces the text shown in place of the price: nothing while idle,
// a loading line, the error message, or the rupee amount.
func Render(s State) string {
	switch {
	case s.Loading:
		return loadingText
	case s.Error != nil:
		return *s.Error
	case s.Price != nil:
		return "₹ " + strconv.FormatFloat(*s.Price, 'f', -1, 64)
	default:
		return ""
	}
}
