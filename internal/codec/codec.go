package codec

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/LzdqesjG/BungeeLog/internal/domain"
)

// Severity names used in log lines.
const (
	LevelInfo = "INFO"
	LevelWarn = "WARNING"
)

// MaxCommandLen caps the length of a console command accepted over the wire.
const MaxCommandLen = 256

// FormatLine substitutes %time%, %level% and %message% into template.
// Each placeholder may appear any number of times; anything else is left as-is.
func FormatLine(template, level, message, timestamp string) string {
	line := strings.ReplaceAll(template, "%time%", timestamp)
	line = strings.ReplaceAll(line, "%level%", level)
	line = strings.ReplaceAll(line, "%message%", message)
	return line
}

// Describe returns the severity and free-text message for an event's log line.
func Describe(ev domain.Event) (level, message string) {
	switch ev.Kind {
	case domain.PlayerJoin:
		return LevelInfo, fmt.Sprintf("[Player Join] %s (%s)", ev.Player.Name, ev.Addr)
	case domain.PlayerQuit:
		return LevelInfo, fmt.Sprintf("[Player Quit] %s", ev.Player.Name)
	case domain.ServerConnect:
		return LevelInfo, fmt.Sprintf("[Server Connect] %s -> %s | reason: %s", ev.Player.Name, ev.Server, ev.Reason)
	case domain.ServerConnected:
		return LevelInfo, fmt.Sprintf("[Server Connected] %s connected to %s", ev.Player.Name, ev.Server)
	case domain.ServerDisconnect:
		return LevelInfo, fmt.Sprintf("[Server Disconnect] %s left %s", ev.Player.Name, ev.Server)
	case domain.PlayerKicked:
		return LevelWarn, fmt.Sprintf("[Player Kicked] %s kicked from %s | reason: %s", ev.Player.Name, ev.Server, ev.Reason)
	case domain.Chat:
		return LevelInfo, fmt.Sprintf("[Chat] %s: %s", ev.Player.Name, ev.Text)
	case domain.Command:
		return LevelInfo, fmt.Sprintf("[Command] %s: %s", ev.Player.Name, ev.Text)
	case domain.Ping:
		return LevelInfo, fmt.Sprintf("[Ping] %s", ev.Addr)
	default:
		return LevelInfo, fmt.Sprintf("[%s]", ev.Kind)
	}
}

// playerEnvelope covers playerjoin and playerquit.
type playerEnvelope struct {
	Type string `json:"type"`
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// switchEnvelope covers playergotoserver (From set) and playerleaveserver (To set).
type switchEnvelope struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	UUID   string `json:"uuid"`
	Server string `json:"server"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
}

type messageEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type authEnvelope struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

type commandResultEnvelope struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Command string `json:"command"`
}

type commandErrorEnvelope struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Envelope builds the broadcast envelope for an event. Player joins, quits and
// server switches get their dedicated envelope type; every other kind is
// relayed as a generic plugin message carrying the formatted log text.
// Exactly one envelope per event.
func Envelope(ev domain.Event) []byte {
	switch ev.Kind {
	case domain.PlayerJoin:
		return marshal(playerEnvelope{Type: "playerjoin", Name: ev.Player.Name, UUID: ev.Player.UUID})
	case domain.PlayerQuit:
		return marshal(playerEnvelope{Type: "playerquit", Name: ev.Player.Name, UUID: ev.Player.UUID})
	case domain.ServerConnected:
		return marshal(switchEnvelope{Type: "playergotoserver", Name: ev.Player.Name, UUID: ev.Player.UUID, Server: ev.Server, From: orNone(ev.From)})
	case domain.ServerDisconnect:
		return marshal(switchEnvelope{Type: "playerleaveserver", Name: ev.Player.Name, UUID: ev.Player.UUID, Server: ev.Server, To: orNone(ev.To)})
	default:
		_, message := Describe(ev)
		return PluginMessage(message)
	}
}

// PluginMessage builds the generic log/plugin envelope.
func PluginMessage(text string) []byte {
	return marshal(messageEnvelope{Type: "plugin", Message: text})
}

// Lifecycle builds the service lifecycle notification ("started" / "stopped").
func Lifecycle(status string) []byte {
	return marshal(messageEnvelope{Type: "bungeelogwebapi", Message: status})
}

// AuthResult builds the authentication acknowledgement.
func AuthResult(ok bool) []byte {
	status := "failed"
	if ok {
		status = "success"
	}
	return marshal(authEnvelope{Type: "auth", Status: status})
}

// CommandResult builds the reply for an executed console command.
func CommandResult(command string, ok bool) []byte {
	status := "error"
	if ok {
		status = "success"
	}
	return marshal(commandResultEnvelope{Type: "command", Status: status, Command: command})
}

// CommandError builds the reply for a command that could not be processed.
func CommandError(message string) []byte {
	return marshal(commandErrorEnvelope{Type: "command", Status: "error", Message: message})
}

// CommandRequest is the post-auth client request asking the relay to run a
// console command.
type CommandRequest struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// ParseCommandRequest decodes an inbound client frame into a typed request.
// Returns false for frames that are not well-formed command requests.
func ParseCommandRequest(payload []byte) (CommandRequest, bool) {
	var req CommandRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return CommandRequest{}, false
	}
	if req.Type != "command" {
		return CommandRequest{}, false
	}
	return req, true
}

// ValidateCommand rejects command strings that are empty, oversized or carry
// control characters, before they reach the console executor.
func ValidateCommand(command string) error {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return fmt.Errorf("empty command")
	}
	if len(trimmed) > MaxCommandLen {
		return fmt.Errorf("command exceeds %d characters", MaxCommandLen)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return fmt.Errorf("command contains control characters")
		}
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func marshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// All envelope types are plain string structs; marshalling cannot fail.
		panic(err)
	}
	return data
}
