// Package chunk provides the little-endian cursor codec and chunk framing
// shared by the model container and its embedded geometry blocks.
package chunk

import "fmt"

// Tag is a 4-byte chunk code as it appears in the file.
type Tag [4]byte

// Container chunk tags.
var (
	TagTextures       = Tag{'T', 'X', 'T', 'R'}
	TagHeader         = Tag{'H', 'D', 'R', '2'}
	TagSubObject      = Tag{'O', 'B', 'J', '2'}
	TagSpecialPoints  = Tag{'S', 'P', 'C', 'L'}
	TagGunPoints      = Tag{'G', 'P', 'N', 'T'}
	TagMissilePoints  = Tag{'M', 'P', 'N', 'T'}
	TagGunTurrets     = Tag{'T', 'G', 'U', 'N'}
	TagMissileTurrets = Tag{'T', 'M', 'I', 'S'}
	TagDocking        = Tag{'D', 'O', 'C', 'K'}
	TagThrusters      = Tag{'F', 'U', 'E', 'L'}
	TagShield         = Tag{'S', 'H', 'L', 'D'}
	TagEyePoints      = Tag{'E', 'Y', 'E', ' '}
	TagAutoCenter     = Tag{'A', 'C', 'E', 'N'}
	TagInsignia       = Tag{'I', 'N', 'S', 'G'}
	TagPaths          = Tag{'P', 'A', 'T', 'H'}
	TagGlowBanks      = Tag{'G', 'L', 'O', 'W'}
	TagShieldTree     = Tag{'S', 'L', 'D', 'C'}
	TagProductionInfo = Tag{'P', 'I', 'N', 'F'}
)

var knownTags = map[Tag]bool{
	TagTextures:       true,
	TagHeader:         true,
	TagSubObject:      true,
	TagSpecialPoints:  true,
	TagGunPoints:      true,
	TagMissilePoints:  true,
	TagGunTurrets:     true,
	TagMissileTurrets: true,
	TagDocking:        true,
	TagThrusters:      true,
	TagShield:         true,
	TagEyePoints:      true,
	TagAutoCenter:     true,
	TagInsignia:       true,
	TagPaths:          true,
	TagGlowBanks:      true,
	TagShieldTree:     true,
	TagProductionInfo: true,
}

// Known reports whether t belongs to the fixed set of container tags.
func (t Tag) Known() bool {
	return knownTags[t]
}

// String returns the tag as text, escaping non-printable bytes.
func (t Tag) String() string {
	for _, b := range t {
		if b < 0x20 || b > 0x7e {
			return fmt.Sprintf("%q", string(t[:]))
		}
	}
	return string(t[:])
}

// ParseTag converts a 4-character string to a Tag.
func ParseTag(s string) (Tag, error) {
	var t Tag
	if len(s) != 4 {
		return t, fmt.Errorf("chunk tag %q: want 4 bytes, got %d", s, len(s))
	}
	copy(t[:], s)
	return t, nil
}

// Header precedes every container-level record.
type Header struct {
	Tag  Tag
	Size uint32 // payload byte count
}

// HeaderSize is the encoded size of a Header.
const HeaderSize = 8
