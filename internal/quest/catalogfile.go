package quest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/MRamiBalles/ScavengerSensoryHunt/server/internal/trigger"
)

// CatalogFile is the on-disk format for custom quests added at boot.
type CatalogFile struct {
	Quests []CatalogEntry `json:"quests" jsonschema:"title=Quests,description=Custom quests appended to the built-in catalog in file order.,required"`
}

// CatalogEntry describes one custom quest.
type CatalogEntry struct {
	Name        string `json:"name" jsonschema:"title=Name,description=Short title shown on the badge display.,minLength=1,maxLength=31,required"`
	Description string `json:"description" jsonschema:"title=Description,description=One line hint for the player.,minLength=1,maxLength=127,required"`
	Trigger     string `json:"trigger" jsonschema:"title=Trigger,description=Sensor condition that advances the quest.,enum=rain,enum=cold,enum=dark,enum=cigarette_smoke,enum=herbal_smoke,enum=movement,enum=tilt,enum=proximity,enum=manual,required"`
	Target      uint32 `json:"target" jsonschema:"title=Target,description=Number of ticks the trigger must fire to complete the quest.,minimum=1,required"`
}

// LoadCatalogFile reads a custom quest file.
func LoadCatalogFile(path string) (CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CatalogFile{}, fmt.Errorf("read catalog: %w", err)
	}
	var f CatalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return CatalogFile{}, fmt.Errorf("decode catalog: %w", err)
	}
	return f, nil
}

// Apply adds every entry to the engine's catalog. It stops at the first
// entry that is rejected.
func (f CatalogFile) Apply(e *Engine) ([]Definition, error) {
	added := make([]Definition, 0, len(f.Quests))
	for i, entry := range f.Quests {
		kind, err := trigger.ParseKind(entry.Trigger)
		if err != nil {
			return added, fmt.Errorf("%w: catalog entry %d: %v", ErrInvalidArgument, i, err)
		}
		d, err := e.AddDefinition(entry.Name, entry.Description, kind, entry.Target)
		if err != nil {
			return added, fmt.Errorf("catalog entry %d (%s): %w", i, entry.Name, err)
		}
		added = append(added, d)
	}
	return added, nil
}

// CatalogSchema returns the JSON Schema for CatalogFile.
func CatalogSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(CatalogFile))
	schema.Title = "Scavenger Sensory Hunt Quest Catalog"
	schema.Description = "Custom quest definitions loaded by the badge at boot."
	return schema
}
