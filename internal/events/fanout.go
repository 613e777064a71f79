package events

import "github.com/mcdev12/quizroom/internal/room"

// Fanout wraps the primary broadcaster and mirrors room-scoped events to
// NATS. Replies and group membership stay with the primary only.
type Fanout struct {
	primary room.Broadcaster
	mirror  *Mirror
}

// NewFanout combines a broadcaster with an event mirror.
func NewFanout(primary room.Broadcaster, mirror *Mirror) *Fanout {
	return &Fanout{primary: primary, mirror: mirror}
}

func (f *Fanout) Join(connID, roomCode string) {
	f.primary.Join(connID, roomCode)
}

func (f *Fanout) Leave(connID, roomCode string) {
	f.primary.Leave(connID, roomCode)
}

func (f *Fanout) Publish(roomCode, event string, payload any) {
	f.primary.Publish(roomCode, event, payload)
	if f.mirror != nil {
		f.mirror.Publish(roomCode, event, payload)
	}
}

func (f *Fanout) Reply(connID, event string, payload any) {
	f.primary.Reply(connID, event, payload)
}
