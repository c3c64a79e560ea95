package main

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/manamana32321/tshock-discord-relay/relay"
)

// maxPlayers is the size of the server's player slot table.
const maxPlayers = 255

var (
	joinPattern  = regexp.MustCompile(`^(.+?)(?: \([0-9A-Fa-f.:\[\]]+\))? has joined\.$`)
	leavePattern = regexp.MustCompile(`^(.+?) has left\.$`)
	chatPattern  = regexp.MustCompile(`^<(.+?)> (.*)$`)
	// deathPattern matches what follows a player's name in one of the
	// server's death messages.
	deathPattern = regexp.MustCompile(`^(?:` +
		`'s (?:face was torn off|entrails were ripped out|skull was crushed|extremities were detached|body was mangled|vital organs were ruptured|plead for death was answered|meat was ripped off the bone|flailing about was finally stopped)` +
		`| was (?:slain|killed|eviscerated|murdered|destroyed|torn in half|decapitated|brutally dissected|turned into a pile of flesh|removed from|cut down the middle|chopped into pieces|impaled|pierced|shot|struck down|burned|incinerated|electrocuted|petrified|squished|crushed|devoured|licked|pricked|stung|infected|mauled)` +
		`| (?:got (?:massacred|impaled|snapped in half|melted)|fell to their death|didn't bounce|drowned|forgot to breathe|is sleeping with the fish|tried to swim in lava|likes to play in magma|burned to death|suffocated|bled out|died|froze to death|exploded|evaporated|disintegrated|couldn't find the antidote|tried to escape|let their arms get torn off|watched their innards become outards|had their head removed|faced the consequences|met their end|left this world)` +
		`)\b.*[.!]$`)
)

// ConsoleHost is a relay.Host driven by server console output. It keeps
// the player slot table the console itself does not expose.
type ConsoleHost struct {
	serverName string
	hooks      relay.HostHooks
	log        logrus.FieldLogger

	mu    sync.RWMutex
	slots [maxPlayers]string
}

func NewConsoleHost(serverName string, log logrus.FieldLogger) *ConsoleHost {
	return &ConsoleHost{serverName: serverName, log: log}
}

func (h *ConsoleHost) Hooks() *relay.HostHooks { return &h.hooks }
func (h *ConsoleHost) ServerName() string      { return h.serverName }

func (h *ConsoleHost) Player(who int) (string, bool) {
	if who < 0 || who >= maxPlayers {
		return "", false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	name := h.slots[who]
	return name, name != ""
}

// Players returns connected names in slot order.
func (h *ConsoleHost) Players() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var names []string
	for _, n := range h.slots {
		if n != "" {
			names = append(names, n)
		}
	}
	return names
}

// HandleLine parses one console line and dispatches the matching host event.
// Hooks run without the slot lock held.
func (h *ConsoleHost) HandleLine(line string) {
	line = cleanLine(line)
	if line == "" {
		return
	}

	if m := chatPattern.FindStringSubmatch(line); m != nil {
		who := h.assign(m[1])
		h.hooks.Chat.Dispatch(relay.ChatArgs{Who: who, RawText: m[2]})
		return
	}
	if m := joinPattern.FindStringSubmatch(line); m != nil {
		who := h.assign(m[1])
		h.hooks.Join.Dispatch(relay.JoinArgs{Who: who})
		return
	}
	if m := leavePattern.FindStringSubmatch(line); m != nil {
		who := h.slotOf(m[1])
		h.hooks.Leave.Dispatch(relay.LeaveArgs{Who: who})
		h.free(who)
		return
	}
	if name, ok := h.deathOf(line); ok {
		who := h.slotOf(name)
		data := relay.EncodePlayerDeath(relay.PlayerDeath{
			PlayerID: who,
			Reason:   relay.CustomDeathReason(line),
		})
		h.hooks.GetData.Dispatch(relay.GetDataArgs{MsgID: relay.PacketPlayerDeathV2, Who: who, Data: data})
	}
}

// Reconcile replaces the slot table's contents with names without
// dispatching any events. Players already seated keep their slot.
func (h *ConsoleHost) Reconcile(names []string) {
	online := make(map[string]bool, len(names))
	for _, n := range names {
		online[n] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, n := range h.slots {
		if n == "" {
			continue
		}
		if !online[n] {
			h.log.WithField("player", n).Debug("roster sync removed player")
			h.slots[i] = ""
			continue
		}
		delete(online, n)
	}

	missing := make([]string, 0, len(online))
	for n := range online {
		missing = append(missing, n)
	}
	sort.Strings(missing)
	for _, n := range missing {
		if h.assignLocked(n) < 0 {
			h.log.WithField("player", n).Warn("no free player slot")
			return
		}
		h.log.WithField("player", n).Debug("roster sync added player")
	}
}

// assign returns name's slot, seating it in the first free slot when new.
// It returns -1 when the table is full.
func (h *ConsoleHost) assign(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.assignLocked(name)
}

func (h *ConsoleHost) assignLocked(name string) int {
	free := -1
	for i, n := range h.slots {
		if n == name {
			return i
		}
		if n == "" && free < 0 {
			free = i
		}
	}
	if free >= 0 {
		h.slots[free] = name
	}
	return free
}

func (h *ConsoleHost) slotOf(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i, n := range h.slots {
		if n == name {
			return i
		}
	}
	return -1
}

func (h *ConsoleHost) free(who int) {
	if who < 0 || who >= maxPlayers {
		return
	}
	h.mu.Lock()
	h.slots[who] = ""
	h.mu.Unlock()
}

// deathOf reports whether line is a death message about a seated player.
// The longest matching name wins so "Bob Jr" is not read as "Bob".
func (h *ConsoleHost) deathOf(line string) (string, bool) {
	names := h.Players()
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, n := range names {
		rest, ok := strings.CutPrefix(line, n)
		if ok && deathPattern.MatchString(rest) {
			return n, true
		}
	}
	return "", false
}

// cleanLine strips the console prompt and trailing whitespace.
func cleanLine(line string) string {
	line = strings.TrimRight(line, " \t\r\n")
	for strings.HasPrefix(line, ": ") {
		line = line[2:]
	}
	return line
}
