package mathx_test

import (
	"fmt"
	"testing"

	"github.com/LivTel/autoguider-sub002/mathx"
)

func ExampleRound() {
	fmt.Println(mathx.Round(-40.6, 1), mathx.Round(1.3, 0.5))
	// Output: -41 1.5
}

func TestRoundHalves(t *testing.T) {
	for in, expected := range map[float64]float64{2.5: 3, -2.5: -2, -0.4: 0, 7: 7} {
		if out := mathx.Round(in, 1); out != expected {
			t.Errorf("Round(%v) expected %v got %v", in, expected, out)
		}
	}
}
