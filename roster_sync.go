package main

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	onlinePlayersPattern = regexp.MustCompile(`^Online Players \(\d+/\d+\):\s*(.*)$`)
	connectedPattern     = regexp.MustCompile(`^(?:\d+ players?|No players) connected\.$`)
	addrSuffixPattern    = regexp.MustCompile(`\s+\([^()]*\)$`)
)

// CommandExecutor runs a server console command.
type CommandExecutor interface {
	Execute(cmd string) (string, error)
}

// RosterReconciler accepts the authoritative list of connected players.
type RosterReconciler interface {
	Reconcile(names []string)
}

// RosterSync periodically asks the server who is online and corrects the
// console host's slot table, e.g. after the relay restarts mid-session.
type RosterSync struct {
	rcon     CommandExecutor
	host     RosterReconciler
	command  string
	interval time.Duration
	log      logrus.FieldLogger
}

func NewRosterSync(rcon CommandExecutor, host RosterReconciler, command string, interval time.Duration, log logrus.FieldLogger) *RosterSync {
	return &RosterSync{rcon: rcon, host: host, command: command, interval: interval, log: log}
}

func (s *RosterSync) Run(ctx context.Context) {
	s.sync()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sync()
		}
	}
}

func (s *RosterSync) sync() {
	resp, err := s.rcon.Execute(s.command)
	if err != nil {
		s.log.WithError(err).Warn("roster sync failed")
		return
	}
	names := parsePlayers(resp)
	s.host.Reconcile(names)
	s.log.WithField("players", len(names)).Debug("roster synced")
}

// parsePlayers reads both the vanilla "playing" output (one player per
// line, optionally followed by an address) and TShock's
// "Online Players (n/m): a, b" form.
func parsePlayers(resp string) []string {
	names := []string{}
	lines := strings.Split(strings.ReplaceAll(resp, "\r\n", "\n"), "\n")

	for i := 0; i < len(lines); i++ {
		line := cleanLine(lines[i])
		if line == "" || connectedPattern.MatchString(line) {
			continue
		}
		if m := onlinePlayersPattern.FindStringSubmatch(line); m != nil {
			// TShock lists names comma separated, possibly wrapped over
			// the following lines.
			list := m[1]
			for i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
				i++
				list += ", " + strings.TrimSpace(lines[i])
			}
			for _, n := range strings.Split(list, ",") {
				if n = strings.TrimSpace(n); n != "" {
					names = append(names, n)
				}
			}
			continue
		}
		names = append(names, addrSuffixPattern.ReplaceAllString(line, ""))
	}
	return names
}
