package codec

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LzdqesjG/BungeeLog/internal/domain"
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"default template", "[%time%] [%level%] %message%", "[10:00:00] [INFO] hello"},
		{"repeated placeholder", "%time% %time%", "10:00:00 10:00:00"},
		{"no placeholders", "static line", "static line"},
		{"unknown placeholder kept", "%time% %user% %message%", "10:00:00 %user% hello"},
		{"empty template", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatLine(tt.template, "INFO", "hello", "10:00:00")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name      string
		event     domain.Event
		wantLevel string
		wantMsg   string
	}{
		{
			name:      "player join",
			event:     domain.NewPlayerJoin(domain.Player{Name: "Alice", UUID: "uuid-1"}, "1.2.3.4"),
			wantLevel: LevelInfo,
			wantMsg:   "[Player Join] Alice (1.2.3.4)",
		},
		{
			name:      "player quit",
			event:     domain.NewPlayerQuit(domain.Player{Name: "Alice"}),
			wantLevel: LevelInfo,
			wantMsg:   "[Player Quit] Alice",
		},
		{
			name:      "kick is a warning",
			event:     domain.NewPlayerKicked(domain.Player{Name: "Bob"}, "lobby", "banned"),
			wantLevel: LevelWarn,
			wantMsg:   "[Player Kicked] Bob kicked from lobby | reason: banned",
		},
		{
			name:      "chat",
			event:     domain.NewChat(domain.Player{Name: "Bob"}, "hi there"),
			wantLevel: LevelInfo,
			wantMsg:   "[Chat] Bob: hi there",
		},
		{
			name:      "ping",
			event:     domain.NewPing("5.6.7.8"),
			wantLevel: LevelInfo,
			wantMsg:   "[Ping] 5.6.7.8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, msg := Describe(tt.event)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestEnvelope_PlayerJoin(t *testing.T) {
	ev := domain.NewPlayerJoin(domain.Player{Name: "Alice", UUID: "uuid-1"}, "1.2.3.4")
	assert.JSONEq(t, `{"type":"playerjoin","name":"Alice","uuid":"uuid-1"}`, string(Envelope(ev)))
}

func TestEnvelope_ServerSwitches(t *testing.T) {
	goto_ := domain.NewServerConnected(domain.Player{Name: "Alice", UUID: "uuid-1"}, "survival", "lobby")
	assert.JSONEq(t, `{"type":"playergotoserver","name":"Alice","uuid":"uuid-1","server":"survival","from":"lobby"}`, string(Envelope(goto_)))

	leave := domain.NewServerDisconnect(domain.Player{Name: "Alice", UUID: "uuid-1"}, "survival", "")
	assert.JSONEq(t, `{"type":"playerleaveserver","name":"Alice","uuid":"uuid-1","server":"survival","to":"none"}`, string(Envelope(leave)))
}

func TestEnvelope_OtherKindsAreParseablePluginMessages(t *testing.T) {
	events := []domain.Event{
		domain.NewChat(domain.Player{Name: "Bob"}, "hi"),
		domain.NewCommand(domain.Player{Name: "Bob"}, "/spawn"),
		domain.NewPing("1.1.1.1"),
		domain.NewServerConnect(domain.Player{Name: "Bob"}, "lobby", "join_proxy"),
		domain.NewPlayerKicked(domain.Player{Name: "Bob"}, "lobby", "afk"),
	}

	for _, ev := range events {
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(Envelope(ev), &decoded), "kind %s", ev.Kind)
		assert.Equal(t, "plugin", decoded["type"], "kind %s", ev.Kind)
		assert.NotEmpty(t, decoded["message"], "kind %s", ev.Kind)
	}
}

func TestProtocolEnvelopes(t *testing.T) {
	assert.Equal(t, `{"type":"auth","status":"success"}`, string(AuthResult(true)))
	assert.Equal(t, `{"type":"auth","status":"failed"}`, string(AuthResult(false)))
	assert.Equal(t, `{"type":"bungeelogwebapi","message":"started"}`, string(Lifecycle("started")))
	assert.Equal(t, `{"type":"bungeelogwebapi","message":"stopped"}`, string(Lifecycle("stopped")))
	assert.Equal(t, `{"type":"command","status":"success","command":"list"}`, string(CommandResult("list", true)))
	assert.Equal(t, `{"type":"command","status":"error","command":"list"}`, string(CommandResult("list", false)))
}

func TestEscapingRoundTrip(t *testing.T) {
	inputs := []string{
		`quote " inside`,
		`backslash \ inside`,
		"newline\ninside",
		"tab\tinside",
		"carriage\rreturn",
		"all of them \\ \" \n \r \t together",
	}

	for _, input := range inputs {
		data := PluginMessage(input)

		var decoded struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, input, decoded.Message)
	}
}

func TestParseCommandRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantOK  bool
		wantCmd string
	}{
		{"valid", `{"type":"command","command":"list"}`, true, "list"},
		{"escaped quotes inside value", `{"type":"command","command":"say \"hello\""}`, true, `say "hello"`},
		{"nested command-like text", `{"type":"command","command":"tell a {\"command\":\"fake\"}"}`, true, `tell a {"command":"fake"}`},
		{"wrong type", `{"type":"chat","command":"list"}`, false, ""},
		{"not json", `bungeelog`, false, ""},
		{"empty object", `{}`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok := ParseCommandRequest([]byte(tt.payload))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantCmd, req.Command)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	assert.NoError(t, ValidateCommand("list"))
	assert.NoError(t, ValidateCommand("  say hello  "))

	assert.Error(t, ValidateCommand(""))
	assert.Error(t, ValidateCommand("   "))
	assert.Error(t, ValidateCommand("bad\ncommand"))
	assert.Error(t, ValidateCommand("bad\x00command"))
	assert.Error(t, ValidateCommand(strings.Repeat("x", MaxCommandLen+1)))
}
