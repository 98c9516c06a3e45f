// Package tts voice presets for the agent roster.
package tts

// AgentVoices maps each agent identity to its synthesis voice. The roster
// matches the autonomous robot system: planning agents get measured voices,
// the pilot and observer get lighter ones. This mapping is immutable
// configuration; unknown identities fall back to DefaultVoice.
var AgentVoices = map[string]string{
	"director":           "Kore",   // firm
	"strategist":         "Charon", // informative
	"mission_controller": "Fenrir", // excitable
	"operations_manager": "Aoede",  // breezy
	"pilot":              "Puck",   // upbeat
	"observer":           "Leda",   // youthful
}

// DefaultVoice is the voice used for unknown authors.
const DefaultVoice = "Zephyr"

// VoiceFor returns the synthesis voice for an agent identity,
// or DefaultVoice if the identity is unknown.
func VoiceFor(author string) string {
	if v, ok := AgentVoices[author]; ok {
		return v
	}
	return DefaultVoice
}

// IsKnownAuthor returns true if the identity has a dedicated voice.
func IsKnownAuthor(author string) bool {
	_, ok := AgentVoices[author]
	return ok
}
