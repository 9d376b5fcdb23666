package visitors

import (
	"hash/fnv"
	"strings"
)

var aliasPrefixes = []string{
	"Neon", "Chrome", "Static", "Quantum", "Midnight", "Analog", "Binary", "Cobalt",
	"Crimson", "Digital", "Electric", "Ghost", "Hollow", "Laser", "Lunar", "Magnetic",
	"Obsidian", "Phantom", "Pixel", "Prism", "Retro", "Silent", "Solar", "Sonic",
	"Turbo", "Ultra", "Vapor", "Velvet", "Violet", "Wired", "Zero", "Amber",
}

var aliasNouns = []string{
	"Runner", "Signal", "Circuit", "Falcon", "Drifter", "Cipher", "Voyager", "Nomad",
	"Comet", "Raven", "Orbit", "Pulse", "Spectre", "Tiger", "Vector", "Wolf",
	"Kernel", "Daemon", "Packet", "Socket", "Beacon", "Glitch", "Horizon", "Lynx",
	"Mirage", "Nova", "Oracle", "Photon", "Relay", "Sentinel", "Synth", "Wave",
}

// VisitorAlias returns a readable, stable display name for a fingerprint.
func VisitorAlias(fingerprint string) string {
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	index := int(h.Sum32())

	prefix := aliasPrefixes[index%len(aliasPrefixes)]
	noun := aliasNouns[(index/len(aliasPrefixes))%len(aliasNouns)]
	return strings.Join([]string{prefix, noun}, " ")
}
