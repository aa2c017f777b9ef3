package quest

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/trigger"
)

// DefaultDefinitions is the built-in quest set. Slot 8 is left free and is
// the first one custom definitions take.
var DefaultDefinitions = []Definition{
	{ID: 1, Name: "Rain Dancer", Description: "Find a rainy spot and dance in the rain!", Trigger: trigger.Rain, Target: 1},
	{ID: 2, Name: "Cold Explorer", Description: "Find a cold location (below 15°C)", Trigger: trigger.Cold, Target: 1},
	{ID: 3, Name: "Shadow Hunter", Description: "Find a dark or covered area", Trigger: trigger.Dark, Target: 1},
	{ID: 4, Name: "Smoke Detective", Description: "Detect cigarette smoke", Trigger: trigger.CigaretteSmoke, Target: 1},
	{ID: 5, Name: "Shake It Off", Description: "Shake your badge vigorously", Trigger: trigger.Movement, Target: 5},
	{ID: 6, Name: "Tilt Master", Description: "Tilt your badge at different angles", Trigger: trigger.Tilt, Target: 3},
	{ID: 7, Name: "Badge Network", Description: "Find another badge nearby via LoRa", Trigger: trigger.Proximity, Target: 1},
	{ID: 9, Name: "Herbal Detective", Description: "Detect unique herbal smoke signatures", Trigger: trigger.HerbalSmoke, Target: 1},
}

// Catalog is a fixed arena of definition slots. A definition's id is its
// slot number, so ids stay stable as definitions are added.
// Catalog is not safe for concurrent use; the engine guards it.
type Catalog struct {
	slots [CatalogCapacity]*Definition
}

// NewCatalog returns a catalog holding defs at their own ids.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{}
	for _, d := range defs {
		if err := checkID(d.ID); err != nil {
			return nil, err
		}
		if c.slots[d.ID-1] != nil {
			return nil, fmt.Errorf("%w: duplicate quest id %d", ErrInvalidArgument, d.ID)
		}
		d, err := normalize(d)
		if err != nil {
			return nil, err
		}
		c.slots[d.ID-1] = &d
	}
	return c, nil
}

// DefaultCatalog returns a catalog with the built-in quests.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions...)
	if err != nil {
		panic(err)
	}
	return c
}

func checkID(id int) error {
	if id <= 0 || id > CatalogCapacity {
		return fmt.Errorf("%w: quest id %d out of range 1..%d", ErrInvalidArgument, id, CatalogCapacity)
	}
	return nil
}

func normalize(d Definition) (Definition, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	switch {
	case d.Name == "":
		return d, fmt.Errorf("%w: empty quest name", ErrInvalidArgument)
	case d.Description == "":
		return d, fmt.Errorf("%w: empty quest description", ErrInvalidArgument)
	case d.Target == 0:
		return d, fmt.Errorf("%w: target must be at least 1", ErrInvalidArgument)
	case d.Trigger == trigger.None || !d.Trigger.Valid():
		return d, fmt.Errorf("%w: unusable trigger %s", ErrInvalidArgument, d.Trigger)
	}
	d.Name = truncate(d.Name, MaxNameLen)
	d.Description = truncate(d.Description, MaxDescriptionLen)
	return d, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Get returns the definition with the given id.
func (c *Catalog) Get(id int) (Definition, error) {
	if err := checkID(id); err != nil {
		return Definition{}, err
	}
	d := c.slots[id-1]
	if d == nil {
		return Definition{}, fmt.Errorf("%w: no quest with id %d", ErrInvalidArgument, id)
	}
	return *d, nil
}

// Add stores a new definition in the first free slot and returns it with
// its assigned id.
func (c *Catalog) Add(name, description string, kind trigger.Kind, target uint32) (Definition, error) {
	d, err := normalize(Definition{Name: name, Description: description, Trigger: kind, Target: target})
	if err != nil {
		return Definition{}, err
	}
	for i, slot := range c.slots {
		if slot == nil {
			d.ID = i + 1
			c.slots[i] = &d
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: catalog holds %d quests", ErrResourceExhausted, CatalogCapacity)
}

// List returns every definition in id order.
func (c *Catalog) List() []Definition {
	var out []Definition
	for _, d := range c.slots {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out
}

// Len returns the number of occupied slots.
func (c *Catalog) Len() int {
	n := 0
	for _, d := range c.slots {
		if d != nil {
			n++
		}
	}
	return n
}
