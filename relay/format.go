package relay

import (
	"fmt"
	"strconv"
	"strings"
)

// Template placeholders.
const (
	PlaceholderName    = "{character_name}"
	PlaceholderMessage = "{message}"
	PlaceholderCount   = "{current_players}"
	PlaceholderServer  = "{server_name}"
	PlaceholderPlayers = "{player_list}"
)

// Templates are the message layouts for each event type. Empty fields fall
// back to DefaultTemplates.
type Templates struct {
	Join  string `yaml:"join"`
	Leave string `yaml:"leave"`
	Chat  string `yaml:"chat"`
	Death string `yaml:"death"`
}

// DefaultTemplates produce the stock notification text.
var DefaultTemplates = Templates{
	Join:  "{character_name} joined.\n{current_players} players joined {server_name}.\n{player_list}",
	Leave: "{character_name} left.\n{current_players} players joined {server_name}.\n{player_list}",
	Chat:  "{character_name}: {message}",
	Death: "{message}",
}

func (t Templates) withDefaults() Templates {
	if t.Join == "" {
		t.Join = DefaultTemplates.Join
	}
	if t.Leave == "" {
		t.Leave = DefaultTemplates.Leave
	}
	if t.Chat == "" {
		t.Chat = DefaultTemplates.Chat
	}
	if t.Death == "" {
		t.Death = DefaultTemplates.Death
	}
	return t
}

// Formatter turns GameEvents into display strings.
type Formatter struct {
	ServerName string
	Templates  Templates
	// DecorateName is applied to every player name. nil means identity.
	DecorateName func(string) string
}

// NewFormatter returns a Formatter using DefaultTemplates.
func NewFormatter(serverName string) *Formatter {
	return &Formatter{ServerName: serverName, Templates: DefaultTemplates}
}

// Format builds the outbound message for e.
func (f *Formatter) Format(e GameEvent) (string, error) {
	t := f.Templates.withDefaults()

	switch e := e.(type) {
	case PlayerJoined:
		return f.roster(t.Join, e.Name, e.Roster), nil
	case PlayerLeft:
		return f.roster(t.Leave, e.Name, e.Roster), nil
	case ChatMessage:
		return f.fill(t.Chat, e.Name, e.Text), nil
	case PlayerDied:
		return f.fill(t.Death, e.Name, e.CauseText), nil
	default:
		return "", fmt.Errorf("format: unsupported event %T", e)
	}
}

func (f *Formatter) decorate(name string) string {
	if f.DecorateName == nil {
		return name
	}
	return f.DecorateName(name)
}

func (f *Formatter) roster(tmpl, name string, roster []string) string {
	names := make([]string, len(roster))
	for i, n := range roster {
		names[i] = f.decorate(n)
	}
	return strings.NewReplacer(
		PlaceholderName, f.decorate(name),
		PlaceholderCount, strconv.Itoa(len(roster)),
		PlaceholderServer, f.ServerName,
		PlaceholderPlayers, strings.Join(names, ", "),
	).Replace(tmpl)
}

func (f *Formatter) fill(tmpl, name, message string) string {
	// Single pass so a message containing "{server_name}" stays literal.
	return strings.NewReplacer(
		PlaceholderName, f.decorate(name),
		PlaceholderMessage, message,
		PlaceholderServer, f.ServerName,
	).Replace(tmpl)
}

// JoinRoster returns the roster after name joined: snapshot plus name when
// it is not already present.
func JoinRoster(snapshot []string, name string) []string {
	roster := make([]string, 0, len(snapshot)+1)
	roster = append(roster, snapshot...)
	for _, n := range snapshot {
		if n == name {
			return roster
		}
	}
	return append(roster, name)
}

// LeaveRoster returns snapshot with one occurrence of name removed.
func LeaveRoster(snapshot []string, name string) []string {
	roster := make([]string, 0, len(snapshot))
	removed := false
	for _, n := range snapshot {
		if !removed && n == name {
			removed = true
			continue
		}
		roster = append(roster, n)
	}
	return roster
}
