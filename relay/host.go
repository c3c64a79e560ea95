package relay

// Host is the game server side of the relay.
type Host interface {
	Hooks() *HostHooks
	// Player returns the name in slot who. ok is false for an out of range
	// slot, an empty slot or a player without a name.
	Player(who int) (name string, ok bool)
	// Players returns the names of the currently connected players.
	Players() []string
	ServerName() string
}
