package relay

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// PacketPlayerDeathV2 is the message type of a player death packet.
const PacketPlayerDeathV2 byte = 118

// LegacyOtherIndex is the "other" source used by the legacy default reason.
const LegacyOtherIndex = 254

// ErrUnknownPacket is returned when decoding a packet of another type.
var ErrUnknownPacket = errors.New("unknown packet type")

// DeathReason mirrors the game's death reason record. Index fields are -1
// when the corresponding source is absent.
type DeathReason struct {
	SourcePlayerIndex          int
	SourceNPCIndex             int
	SourceProjectileLocalIndex int
	SourceOtherIndex           int
	SourceProjectileType       int
	SourceItemType             int
	SourceItemPrefix           int
	SourceCustomReason         string
	hasCustomReason            bool
}

// NewDeathReason returns a reason with every source absent.
func NewDeathReason() DeathReason {
	return DeathReason{
		SourcePlayerIndex:          -1,
		SourceNPCIndex:             -1,
		SourceProjectileLocalIndex: -1,
		SourceOtherIndex:           -1,
		SourceProjectileType:       0,
		SourceItemType:             0,
		SourceItemPrefix:           0,
	}
}

// CustomDeathReason returns a reason that renders as text verbatim.
func CustomDeathReason(text string) DeathReason {
	r := NewDeathReason()
	r.SourceCustomReason = text
	r.hasCustomReason = true
	return r
}

// LegacyDeathReason returns the generic reason used when nothing better is known.
func LegacyDeathReason() DeathReason {
	r := NewDeathReason()
	r.SourceOtherIndex = LegacyOtherIndex
	return r
}

// PlayerDeath is a decoded PlayerDeathV2 payload.
type PlayerDeath struct {
	PlayerID     int
	Reason       DeathReason
	Damage       int
	HitDirection int
	PvP          bool
}

var otherDeathTexts = map[int]string{
	0:  "%s fell to their death.",
	1:  "%s drowned.",
	2:  "%s was melted.",
	3:  "%s was slain.",
	4:  "%s was slain.",
	5:  "%s was petrified.",
	6:  "%s was stabbed.",
	7:  "%s suffocated.",
	8:  "%s burned to death.",
	9:  "%s was poisoned.",
	10: "%s was electrocuted.",
	11: "%s tried to escape.",
	12: "%s was licked.",
	13: "%s was teleported.",
	14: "%s didn't materialize.",
	15: "%s didn't materialize.",
	16: "%s was incinerated.",
	LegacyOtherIndex: "%s was slain.",
}

// DeathText renders the reason for the player called name. playerName
// resolves a killer's slot; it may be nil. An empty string means no text
// could be produced from the reason.
func (r DeathReason) DeathText(name string, playerName func(who int) (string, bool)) string {
	if r.hasCustomReason {
		return r.SourceCustomReason
	}
	if r.SourcePlayerIndex >= 0 && playerName != nil {
		if killer, ok := playerName(r.SourcePlayerIndex); ok {
			return fmt.Sprintf("%s was slain by %s.", name, killer)
		}
	}
	if r.SourceNPCIndex >= 0 {
		return fmt.Sprintf("%s was slain by a monster.", name)
	}
	if r.SourceProjectileLocalIndex >= 0 || r.SourceProjectileType > 0 {
		return fmt.Sprintf("%s was shot down.", name)
	}
	if tmpl, ok := otherDeathTexts[r.SourceOtherIndex]; ok {
		return fmt.Sprintf(tmpl, name)
	}
	return ""
}

// LegacyDeathText is the fallback phrasing for name.
func LegacyDeathText(name string) string {
	return LegacyDeathReason().DeathText(name, nil)
}

// DecodePlayerDeath decodes a PlayerDeathV2 payload.
func DecodePlayerDeath(msgID byte, data []byte) (PlayerDeath, error) {
	if msgID != PacketPlayerDeathV2 {
		return PlayerDeath{}, fmt.Errorf("decode death: %w %d", ErrUnknownPacket, msgID)
	}
	r := bytes.NewReader(data)

	var d PlayerDeath
	id, err := r.ReadByte()
	if err != nil {
		return d, fmt.Errorf("decode death: player: %w", err)
	}
	d.PlayerID = int(id)

	if d.Reason, err = readDeathReason(r); err != nil {
		return d, fmt.Errorf("decode death: reason: %w", err)
	}

	// The trailer is optional; a truncated one still yields a usable reason.
	var damage int16
	if err := binary.Read(r, binary.LittleEndian, &damage); err != nil {
		return d, nil
	}
	d.Damage = int(damage)
	if dir, err := r.ReadByte(); err == nil {
		d.HitDirection = int(dir)
	}
	if flags, err := r.ReadByte(); err == nil {
		d.PvP = flags&1 != 0
	}
	return d, nil
}

func readDeathReason(r *bytes.Reader) (DeathReason, error) {
	reason := NewDeathReason()
	bits, err := r.ReadByte()
	if err != nil {
		return reason, err
	}

	readInt16 := func(dst *int) error {
		var v int16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return err
		}
		*dst = int(v)
		return nil
	}
	readByte := func(dst *int) error {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		*dst = int(b)
		return nil
	}

	fields := []struct {
		bit  byte
		read func() error
	}{
		{0, func() error { return readInt16(&reason.SourcePlayerIndex) }},
		{1, func() error { return readInt16(&reason.SourceNPCIndex) }},
		{2, func() error { return readInt16(&reason.SourceProjectileLocalIndex) }},
		{3, func() error { return readByte(&reason.SourceOtherIndex) }},
		{4, func() error { return readInt16(&reason.SourceProjectileType) }},
		{5, func() error { return readInt16(&reason.SourceItemType) }},
		{6, func() error { return readByte(&reason.SourceItemPrefix) }},
		{7, func() error {
			s, err := readString(r)
			if err != nil {
				return err
			}
			reason.SourceCustomReason = s
			reason.hasCustomReason = true
			return nil
		}},
	}
	for _, f := range fields {
		if bits&(1<<f.bit) == 0 {
			continue
		}
		if err := f.read(); err != nil {
			return reason, err
		}
	}
	return reason, nil
}

// readString reads a string prefixed with its 7-bit encoded byte length.
func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if n > uint64(r.Len()) {
		return "", io.ErrUnexpectedEOF
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// EncodePlayerDeath writes d in the PlayerDeathV2 payload layout.
func EncodePlayerDeath(d PlayerDeath) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(d.PlayerID))

	r := d.Reason
	var bits byte
	if r.SourcePlayerIndex >= 0 {
		bits |= 1 << 0
	}
	if r.SourceNPCIndex >= 0 {
		bits |= 1 << 1
	}
	if r.SourceProjectileLocalIndex >= 0 {
		bits |= 1 << 2
	}
	if r.SourceOtherIndex >= 0 {
		bits |= 1 << 3
	}
	if r.SourceProjectileType > 0 {
		bits |= 1 << 4
	}
	if r.SourceItemType > 0 {
		bits |= 1 << 5
	}
	if r.SourceItemPrefix > 0 {
		bits |= 1 << 6
	}
	if r.hasCustomReason {
		bits |= 1 << 7
	}
	buf.WriteByte(bits)

	writeInt16 := func(v int) {
		_ = binary.Write(&buf, binary.LittleEndian, int16(v))
	}
	if bits&(1<<0) != 0 {
		writeInt16(r.SourcePlayerIndex)
	}
	if bits&(1<<1) != 0 {
		writeInt16(r.SourceNPCIndex)
	}
	if bits&(1<<2) != 0 {
		writeInt16(r.SourceProjectileLocalIndex)
	}
	if bits&(1<<3) != 0 {
		buf.WriteByte(byte(r.SourceOtherIndex))
	}
	if bits&(1<<4) != 0 {
		writeInt16(r.SourceProjectileType)
	}
	if bits&(1<<5) != 0 {
		writeInt16(r.SourceItemType)
	}
	if bits&(1<<6) != 0 {
		buf.WriteByte(byte(r.SourceItemPrefix))
	}
	if bits&(1<<7) != 0 {
		buf.Write(binary.AppendUvarint(nil, uint64(len(r.SourceCustomReason))))
		buf.WriteString(r.SourceCustomReason)
	}

	writeInt16(d.Damage)
	buf.WriteByte(byte(d.HitDirection))
	var flags byte
	if d.PvP {
		flags = 1
	}
	buf.WriteByte(flags)
	return buf.Bytes()
}
