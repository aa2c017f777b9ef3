// Package trigger turns sensor snapshots into boolean gameplay triggers.
package trigger

import "fmt"

// Kind identifies a trigger rule.
type Kind uint8

const (
	None Kind = iota
	Rain
	Cold
	Dark
	CigaretteSmoke
	HerbalSmoke
	Movement
	Tilt
	Proximity
	Manual
)

var kindNames = [...]string{
	None:           "none",
	Rain:           "rain",
	Cold:           "cold",
	Dark:           "dark",
	CigaretteSmoke: "cigarette_smoke",
	HerbalSmoke:    "herbal_smoke",
	Movement:       "movement",
	Tilt:           "tilt",
	Proximity:      "proximity",
	Manual:         "manual",
}

// Kinds lists every trigger that can be attached to a quest.
func Kinds() []Kind {
	return []Kind{Rain, Cold, Dark, CigaretteSmoke, HerbalSmoke, Movement, Tilt, Proximity, Manual}
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is one of the defined kinds, None included.
func (k Kind) Valid() bool {
	return int(k) < len(kindNames)
}

// ParseKind converts a name such as "herbal_smoke" into a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return None, fmt.Errorf("unknown trigger kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid trigger kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
