package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeManufacturer(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Texas Instruments", "ti"},
		{"TEXAS INSTRUMENTS INC.", "ti"},
		{"STMicroelectronics Inc.", "st"},
		{"STMicroelectronics", "st"},
		{"Microchip Technology Inc.", "microchip"},
		{"Microchip", "microchip"},
		{"Analog Devices", "analog"},
		{"Würth Elektronik", "wuerth elektronik"},
		{"Böhm Systems Ltd", "boehm"},
		{"NXP USA Inc.", "nxp"},
		{"Maxim Integrated", "maxim"},
		{"Infineon Technologies", "infineon technologies"},
		{"", ""},
		{"Inc.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeManufacturer(tt.input))
		})
	}
}

func TestNormalizeManufacturer_LiteralSubstitution(t *testing.T) {
	// Substitutions are substring replacements, not token matches.
	assert.Equal(t, "footi", NormalizeManufacturer("FooTexas Instruments"))
}

func TestNormalizeManufacturer_KeepsEmptyTokens(t *testing.T) {
	assert.Equal(t, "on  semi", NormalizeManufacturer("ON  Semi"))
}

func TestNormalizeManufacturer_AliasJoinedAfterStopWord(t *testing.T) {
	assert.Equal(t, "ti", NormalizeManufacturer("Texas Inc Instruments"))
}

func TestNormalizeManufacturer_Idempotent(t *testing.T) {
	inputs := []string{
		"Texas Instruments",
		"STMicroelectronics Inc.",
		"Texas Inc Instruments",
		"Ä Ö Ü",
		"  leading and trailing  ",
		"Murata Electronics North America",
		"texas ltd instruments systems",
		"ROHM Semiconductor USA, LLC",
	}
	for _, in := range inputs {
		once := NormalizeManufacturer(in)
		assert.Equal(t, once, NormalizeManufacturer(once), "input %q", in)
	}
}
