package assembly

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/aidekernel/aide/internal/types"
)

// LoadBlueprintFile decodes a `*.blueprint.toml` scaffold file into a
// types.Blueprint. Blueprint scaffolds are process-wide read-only state
// initialised at startup (§5 "Shared resources").
func LoadBlueprintFile(path string) (types.Blueprint, error) {
	var bp types.Blueprint
	if _, err := toml.DecodeFile(path, &bp); err != nil {
		return types.Blueprint{}, fmt.Errorf("assembly: decode blueprint %q: %w", path, err)
	}
	return bp, nil
}

// DefaultBlueprint is used by create when the caller does not name a
// scaffold file (§6.5 "default page visibility and blueprint").
var DefaultBlueprint = types.Blueprint{
	Identity: "a living page",
	Voice:    "plain, direct, no filler",
	Prompt:   "Help the user build and maintain this page through conversation.",
}
