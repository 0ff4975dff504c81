// Package temperature holds temperature units and conversions between them
package temperature

import (
	"fmt"
	"strconv"
	"strings"
)

type (
	// Celsius is a temperature in C
	Celsius float64

	// Kelvin is a temperature in K
	Kelvin float64

	// Fahrenheit is a temperature in deg F
	Fahrenheit float64
)

// AbsoluteZero in Celsius
const AbsoluteZero Celsius = -273.15

func (c Celsius) String() string {
	return strconv.FormatFloat(float64(c), 'f', 2, 64) + " C"
}

func (k Kelvin) String() string {
	return strconv.FormatFloat(float64(k), 'f', 2, 64) + " K"
}

// C2F converts a temp in Celsius to Fahrenheit
func C2F(c Celsius) Fahrenheit {
	return Fahrenheit(c*9/5 + 32)
}

// C2K converts a temp in Celsius to Kelvin
func C2K(c Celsius) Kelvin {
	return Kelvin(c - AbsoluteZero)
}

// K2C converts a temp in Kelvin to Celsius
func K2C(k Kelvin) Celsius {
	return Celsius(k) + AbsoluteZero
}

// F2C converts a temp in Fahrenheit to Celsius
func F2C(f Fahrenheit) Celsius {
	return Celsius((f - 32) * 5 / 9)
}

// Parse reads a temperature such as "-40", "-40C", "233.15K" or "-40F"
// into Celsius.  A bare number is Celsius.  Temperatures below absolute
// zero are rejected.
func Parse(s string) (Celsius, error) {
	str := strings.TrimSpace(s)
	unit := byte('C')
	if n := len(str); n > 0 {
		switch u := str[n-1]; u {
		case 'C', 'c', 'K', 'k', 'F', 'f':
			unit = u &^ 0x20
			str = strings.TrimSpace(str[:n-1])
		}
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("temperature %q: %w", s, err)
	}
	var c Celsius
	switch unit {
	case 'K':
		c = K2C(Kelvin(f))
	case 'F':
		c = F2C(Fahrenheit(f))
	default:
		c = Celsius(f)
	}
	if c < AbsoluteZero {
		return 0, fmt.Errorf("temperature %q is below absolute zero", s)
	}
	return c, nil
}
