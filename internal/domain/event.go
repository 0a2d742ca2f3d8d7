package domain

// EventKind discriminates the proxy lifecycle event variants.
type EventKind string

const (
	PlayerJoin       EventKind = "player_join"
	PlayerQuit       EventKind = "player_quit"
	ServerConnect    EventKind = "server_connect"
	ServerConnected  EventKind = "server_connected"
	ServerDisconnect EventKind = "server_disconnect"
	PlayerKicked     EventKind = "player_kicked"
	Chat             EventKind = "chat"
	Command          EventKind = "command"
	Ping             EventKind = "ping"
)

// Player identifies a proxy player by display name and stable unique id.
type Player struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// Event is one proxy lifecycle event. Immutable once constructed; the relay
// consumes each event exactly once. Only the fields relevant to a kind are
// set, the rest stay zero.
type Event struct {
	Kind   EventKind `json:"kind"`
	Player Player    `json:"player,omitempty"`
	Server string    `json:"server,omitempty"`  // target server (connect, connected, disconnect, kicked)
	From   string    `json:"from,omitempty"`    // previous server on a switch
	To     string    `json:"to,omitempty"`      // next server after leaving
	Reason string    `json:"reason,omitempty"`  // connect reason or kick reason
	Text   string    `json:"message,omitempty"` // chat message or command line
	Addr   string    `json:"addr,omitempty"`    // source address (join, ping)
}

func NewPlayerJoin(p Player, addr string) Event {
	return Event{Kind: PlayerJoin, Player: p, Addr: addr}
}

func NewPlayerQuit(p Player) Event {
	return Event{Kind: PlayerQuit, Player: p}
}

func NewServerConnect(p Player, target, reason string) Event {
	return Event{Kind: ServerConnect, Player: p, Server: target, Reason: reason}
}

func NewServerConnected(p Player, server, from string) Event {
	return Event{Kind: ServerConnected, Player: p, Server: server, From: from}
}

func NewServerDisconnect(p Player, server, to string) Event {
	return Event{Kind: ServerDisconnect, Player: p, Server: server, To: to}
}

func NewPlayerKicked(p Player, from, reason string) Event {
	return Event{Kind: PlayerKicked, Player: p, Server: from, Reason: reason}
}

func NewChat(p Player, message string) Event {
	return Event{Kind: Chat, Player: p, Text: message}
}

func NewCommand(p Player, line string) Event {
	return Event{Kind: Command, Player: p, Text: line}
}

func NewPing(addr string) Event {
	return Event{Kind: Ping, Addr: addr}
}

// Valid reports whether the kind is one of the known variants.
func (k EventKind) Valid() bool {
	switch k {
	case PlayerJoin, PlayerQuit, ServerConnect, ServerConnected,
		ServerDisconnect, PlayerKicked, Chat, Command, Ping:
		return true
	}
	return false
}
