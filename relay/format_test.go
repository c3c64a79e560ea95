package relay

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatter_Format(t *testing.T) {
	f := NewFormatter("TestServer")

	t.Run("Join", func(t *testing.T) {
		msg, err := f.Format(PlayerJoined{Name: "Carol", Roster: JoinRoster([]string{"Alice", "Bob"}, "Carol")})
		require.NoError(t, err)
		assert.Equal(t, "Carol joined.\n3 players joined TestServer.\nAlice, Bob, Carol", msg)
	})

	t.Run("Leave", func(t *testing.T) {
		msg, err := f.Format(PlayerLeft{Name: "Bob", Roster: LeaveRoster([]string{"Alice", "Bob", "Carol"}, "Bob")})
		require.NoError(t, err)
		assert.Equal(t, "Bob left.\n2 players joined TestServer.\nAlice, Carol", msg)
	})

	t.Run("LastPlayerLeaves", func(t *testing.T) {
		msg, err := f.Format(PlayerLeft{Name: "Alice", Roster: LeaveRoster([]string{"Alice"}, "Alice")})
		require.NoError(t, err)
		assert.Equal(t, "Alice left.\n0 players joined TestServer.\n", msg)
	})

	t.Run("Chat", func(t *testing.T) {
		msg, err := f.Format(ChatMessage{Name: "Dave", Text: "hello world"})
		require.NoError(t, err)
		assert.Equal(t, "Dave: hello world", msg)
	})

	t.Run("ChatIsNotEscaped", func(t *testing.T) {
		msg, err := f.Format(ChatMessage{Name: "Dave", Text: "**bold** <b> {server_name}"})
		require.NoError(t, err)
		assert.Equal(t, "Dave: **bold** <b> {server_name}", msg)
	})

	t.Run("Death", func(t *testing.T) {
		msg, err := f.Format(PlayerDied{Name: "Eve", CauseText: "Eve was slain by Zombie."})
		require.NoError(t, err)
		assert.Equal(t, "Eve was slain by Zombie.", msg)
	})

	t.Run("PointerEvent", func(t *testing.T) {
		_, err := f.Format(&ChatMessage{Name: "Dave", Text: "hi"})
		assert.ErrorContains(t, err, "unsupported event")

		_, err = f.Format((*PlayerJoined)(nil))
		assert.ErrorContains(t, err, "unsupported event")
	})
}

func TestFormatter_DecorateName(t *testing.T) {
	f := NewFormatter("TestServer")
	f.DecorateName = func(name string) string { return "[" + name + "]" }

	msg, err := f.Format(PlayerJoined{Name: "Bob", Roster: []string{"Alice", "Bob"}})
	require.NoError(t, err)
	assert.Equal(t, "[Bob] joined.\n2 players joined TestServer.\n[Alice], [Bob]", msg)
}

func TestFormatter_CustomTemplates(t *testing.T) {
	f := &Formatter{
		ServerName: "World",
		Templates:  Templates{Chat: "<{character_name}> {message}"},
	}

	msg, err := f.Format(ChatMessage{Name: "Dave", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "<Dave> hi", msg)

	// Unset templates fall back to the defaults.
	msg, err = f.Format(PlayerJoined{Name: "Dave", Roster: []string{"Dave"}})
	require.NoError(t, err)
	assert.Equal(t, "Dave joined.\n1 players joined World.\nDave", msg)
}

func TestJoinRoster(t *testing.T) {
	cases := []struct {
		name     string
		snapshot []string
		joiner   string
		want     []string
	}{
		{"Empty", nil, "Alice", []string{"Alice"}},
		{"Appends", []string{"Alice", "Bob"}, "Carol", []string{"Alice", "Bob", "Carol"}},
		{"AlreadyListed", []string{"Alice", "Carol"}, "Carol", []string{"Alice", "Carol"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := JoinRoster(tc.snapshot, tc.joiner)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("DoesNotAliasSnapshot", func(t *testing.T) {
		snapshot := make([]string, 2, 8)
		copy(snapshot, []string{"Alice", "Bob"})
		_ = JoinRoster(snapshot, "Carol")
		assert.Equal(t, "", snapshot[:3][2])
	})
}

func TestLeaveRoster(t *testing.T) {
	cases := []struct {
		name     string
		snapshot []string
		leaver   string
		want     []string
	}{
		{"Removes", []string{"Alice", "Bob", "Carol"}, "Bob", []string{"Alice", "Carol"}},
		{"OnlyOneOccurrence", []string{"Bob", "Bob"}, "Bob", []string{"Bob"}},
		{"NotListed", []string{"Alice"}, "Bob", []string{"Alice"}},
		{"Empty", nil, "Bob", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LeaveRoster(tc.snapshot, tc.leaver))
		})
	}
}

func TestRosterProperties(t *testing.T) {
	f := NewFormatter("S")
	rosters := [][]string{
		{},
		{"a"},
		{"a", "b"},
		{"alpha", "beta", "gamma", "delta"},
	}

	for _, r := range rosters {
		joined := JoinRoster(r, "newcomer")
		msg, err := f.Format(PlayerJoined{Name: "newcomer", Roster: joined})
		require.NoError(t, err)
		lines := strings.Split(msg, "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[1], strconv.Itoa(len(r)+1)+" players"), msg)
		assert.Equal(t, strings.Join(append(append([]string{}, r...), "newcomer"), ", "), lines[2])

		if len(r) == 0 {
			continue
		}
		leaver := r[len(r)/2]
		left := LeaveRoster(r, leaver)
		msg, err = f.Format(PlayerLeft{Name: leaver, Roster: left})
		require.NoError(t, err)
		lines = strings.Split(msg, "\n")
		assert.True(t, strings.HasPrefix(lines[1], strconv.Itoa(len(r)-1)+" players"), msg)
		assert.NotContains(t, strings.Split(lines[2], ", "), leaver)
	}
}

func TestChatRoundTrip(t *testing.T) {
	f := NewFormatter("S")
	pairs := [][2]string{{"Dave", "hello world"}, {"x", "y"}, {"Name With Spaces", "text: with colon"}}
	for _, p := range pairs {
		msg, err := f.Format(ChatMessage{Name: p[0], Text: p[1]})
		require.NoError(t, err)
		name, text, ok := strings.Cut(msg, ": ")
		require.True(t, ok)
		assert.Equal(t, p[0], name)
		assert.Equal(t, p[1], text)
	}
}
