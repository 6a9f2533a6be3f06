package paxos

import "github.com/ermiashabtegabr/omni-chiselstore/internal/storecommand"

// Entry is a decided position in the replicated log: either a StoreCommand
// or a structural stop-sign marker. Log indices are dense and monotonic
// starting at 0.
type Entry struct {
	Command  *storecommand.StoreCommand
	StopSign *storecommand.StopSign
}

// IsCommand reports whether this entry carries a StoreCommand.
func (e Entry) IsCommand() bool {
	return e.Command != nil
}

// IsStopSign reports whether this entry carries a stop-sign.
func (e Entry) IsStopSign() bool {
	return e.StopSign != nil
}

func commandEntry(cmd storecommand.StoreCommand) Entry {
	c := cmd
	return Entry{Command: &c}
}

func stopSignEntry(ss storecommand.StopSign) Entry {
	s := ss
	return Entry{StopSign: &s}
}
