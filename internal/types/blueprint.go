package types

// Blueprint is the static identity/voice/prompt scaffold embedded in every
// page document so the document is portable: loading it elsewhere carries
// enough context to resume the tiered conversation without external state
// (GLOSSARY: "Blueprint"). Authored as a `*.blueprint.toml` file and loaded
// via BurntSushi/toml (see internal/assembly).
type Blueprint struct {
	Identity string `toml:"identity" json:"identity"`
	Voice    string `toml:"voice" json:"voice"`
	Prompt   string `toml:"prompt" json:"prompt"`
}
