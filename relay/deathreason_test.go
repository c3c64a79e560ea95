package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupPlayers(names map[int]string) func(int) (string, bool) {
	return func(who int) (string, bool) {
		n, ok := names[who]
		return n, ok
	}
}

func TestDecodePlayerDeath(t *testing.T) {
	t.Run("CustomReason", func(t *testing.T) {
		data := EncodePlayerDeath(PlayerDeath{
			PlayerID:     3,
			Reason:       CustomDeathReason("Eve was slain by Zombie."),
			Damage:       120,
			HitDirection: 1,
		})

		d, err := DecodePlayerDeath(PacketPlayerDeathV2, data)
		require.NoError(t, err)
		assert.Equal(t, 3, d.PlayerID)
		assert.Equal(t, 120, d.Damage)
		assert.Equal(t, 1, d.HitDirection)
		assert.False(t, d.PvP)
		assert.Equal(t, "Eve was slain by Zombie.", d.Reason.DeathText("Eve", nil))
	})

	t.Run("PlayerKill", func(t *testing.T) {
		reason := NewDeathReason()
		reason.SourcePlayerIndex = 7
		reason.SourceItemType = 46
		data := EncodePlayerDeath(PlayerDeath{PlayerID: 2, Reason: reason, Damage: 30, PvP: true})

		d, err := DecodePlayerDeath(PacketPlayerDeathV2, data)
		require.NoError(t, err)
		assert.True(t, d.PvP)
		assert.Equal(t, 7, d.Reason.SourcePlayerIndex)
		assert.Equal(t, 46, d.Reason.SourceItemType)
		assert.Equal(t, "Bob was slain by Alice.", d.Reason.DeathText("Bob", lookupPlayers(map[int]string{7: "Alice"})))
	})

	t.Run("OtherIndex", func(t *testing.T) {
		reason := NewDeathReason()
		reason.SourceOtherIndex = 1
		d, err := DecodePlayerDeath(PacketPlayerDeathV2, EncodePlayerDeath(PlayerDeath{Reason: reason}))
		require.NoError(t, err)
		assert.Equal(t, "Bob drowned.", d.Reason.DeathText("Bob", nil))
	})

	t.Run("LongCustomReason", func(t *testing.T) {
		long := make([]byte, 300)
		for i := range long {
			long[i] = 'x'
		}
		d, err := DecodePlayerDeath(PacketPlayerDeathV2, EncodePlayerDeath(PlayerDeath{Reason: CustomDeathReason(string(long))}))
		require.NoError(t, err)
		assert.Equal(t, string(long), d.Reason.SourceCustomReason)
	})

	t.Run("WrongPacket", func(t *testing.T) {
		_, err := DecodePlayerDeath(12, []byte{1, 2, 3})
		assert.ErrorIs(t, err, ErrUnknownPacket)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := DecodePlayerDeath(PacketPlayerDeathV2, []byte{1})
		assert.Error(t, err)

		// custom reason flag with a length running past the payload
		_, err = DecodePlayerDeath(PacketPlayerDeathV2, []byte{1, 1 << 7, 50, 'a'})
		assert.Error(t, err)
	})

	t.Run("MissingTrailer", func(t *testing.T) {
		d, err := DecodePlayerDeath(PacketPlayerDeathV2, []byte{4, 1 << 3, 2})
		require.NoError(t, err)
		assert.Equal(t, 4, d.PlayerID)
		assert.Equal(t, "Bob was melted.", d.Reason.DeathText("Bob", nil))
	})
}

func TestDeathReason_DeathText(t *testing.T) {
	t.Run("UnknownKillerFallsThrough", func(t *testing.T) {
		reason := NewDeathReason()
		reason.SourcePlayerIndex = 9
		assert.Equal(t, "", reason.DeathText("Bob", lookupPlayers(nil)))
	})

	t.Run("NPC", func(t *testing.T) {
		reason := NewDeathReason()
		reason.SourceNPCIndex = 4
		assert.Equal(t, "Bob was slain by a monster.", reason.DeathText("Bob", nil))
	})

	t.Run("NoSource", func(t *testing.T) {
		assert.Equal(t, "", NewDeathReason().DeathText("Bob", nil))
	})

	t.Run("EmptyCustomReason", func(t *testing.T) {
		assert.Equal(t, "", CustomDeathReason("").DeathText("Bob", nil))
	})
}

func TestLegacyDeathText(t *testing.T) {
	assert.Equal(t, "Bob was slain.", LegacyDeathText("Bob"))
}
