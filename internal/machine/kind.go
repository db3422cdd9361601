package machine

import "strings"

// Kind classifies a machine and selects its sensor configuration.
type Kind int

const (
	AirCompressor Kind = iota
	SteamBoiler
	ElectricMotor
)

var kindNames = [...]string{
	AirCompressor: "Air Compressor",
	SteamBoiler:   "Steam Boiler",
	ElectricMotor: "Electric Motor",
}

// String returns the display name, or "Unknown Type" for values outside the
// known set.
func (k Kind) String() string {
	if !k.Valid() {
		return "Unknown Type"
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < len(kindNames)
}

// Slug returns the display name with spaces replaced, e.g. "Air_Compressor".
func (k Kind) Slug() string {
	return strings.ReplaceAll(k.String(), " ", "_")
}

// Kinds returns all declared kinds in order.
func Kinds() []Kind {
	return []Kind{AirCompressor, SteamBoiler, ElectricMotor}
}
