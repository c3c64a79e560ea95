package relay

// GameEvent is one of PlayerJoined, PlayerLeft, ChatMessage or PlayerDied.
type GameEvent interface {
	// Type is a short event type name used in logs and metrics.
	Type() string
	// Player is the name of the player the event is about.
	Player() string

	gameEvent()
}

// PlayerJoined is emitted when a player connects. Roster includes the joiner.
type PlayerJoined struct {
	Name   string
	Roster []string
}

// PlayerLeft is emitted when a player disconnects. Roster excludes the leaver.
type PlayerLeft struct {
	Name   string
	Roster []string
}

// ChatMessage carries raw, unescaped chat text.
type ChatMessage struct {
	Name string
	Text string
}

// PlayerDied carries a pre-rendered death description.
type PlayerDied struct {
	Name      string
	CauseText string
}

func (PlayerJoined) Type() string { return "join" }
func (PlayerLeft) Type() string   { return "leave" }
func (ChatMessage) Type() string  { return "chat" }
func (PlayerDied) Type() string   { return "death" }

func (e PlayerJoined) Player() string { return e.Name }
func (e PlayerLeft) Player() string   { return e.Name }
func (e ChatMessage) Player() string  { return e.Name }
func (e PlayerDied) Player() string   { return e.Name }

func (PlayerJoined) gameEvent() {}
func (PlayerLeft) gameEvent()   {}
func (ChatMessage) gameEvent()  {}
func (PlayerDied) gameEvent()   {}

// JoinArgs is delivered by the host when a player slot connects.
type JoinArgs struct {
	Who int
}

// LeaveArgs is delivered by the host when a player slot disconnects.
type LeaveArgs struct {
	Who int
}

// ChatArgs is delivered by the host for player chat.
type ChatArgs struct {
	Who     int
	RawText string
}

// GetDataArgs is a raw inbound packet. Data is the payload after the
// message type byte.
type GetDataArgs struct {
	MsgID byte
	Who   int
	Data  []byte
}

// Observer receives every event the relay formats, together with the
// outbound message built for it.
type Observer interface {
	ObserveEvent(event GameEvent, message string)
}
