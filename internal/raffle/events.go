package raffle

// Event is emitted after a successful state-changing operation.
type Event interface {
	isEvent()
}

// Entered is emitted when a participant joins the round.
type Entered struct {
	Player Address
	Index  int
}

// WinnerRequested is emitted when randomness has been requested for the round.
type WinnerRequested struct {
	RequestID RequestID
}

// WinnerPicked is emitted once the pool has been paid to the winner.
type WinnerPicked struct {
	Winner    Address
	Amount    uint64
	RequestID RequestID
}

func (Entered) isEvent()         {}
func (WinnerRequested) isEvent() {}
func (WinnerPicked) isEvent()    {}

// Listener receives events in the order operations complete. Notify is called
// while the raffle is locked and must not call back into it.
type Listener interface {
	Notify(Event)
}

type ListenerFunc func(Event)

func (f ListenerFunc) Notify(e Event) {
	f(e)
}
