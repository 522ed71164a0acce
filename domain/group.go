package domain

// RelayHandle controls a running group relay, whatever runs it.
// Terminate only requests the stop: the relay still broadcasts its
// end-notices before Done is closed.
type RelayHandle interface {
	Terminate()
	Done() <-chan struct{}
}

// GroupDescriptor is a row of the directory table. The slot index gives the port.
type GroupDescriptor struct {
	Slot      int
	Name      string
	Port      int
	Moderator string
	Handle    RelayHandle
	Active    bool
}

// IsModerator compares by canonical name.
func (g GroupDescriptor) IsModerator(name string) bool {
	return SameIdentity(g.Moderator, name)
}

// RelaySpec is what a spawner needs to start a relay.
type RelaySpec struct {
	Name      string
	Port      int
	Moderator string
}
