//go:build fli

package backends

import (
	"github.com/LivTel/autoguider-sub002/fli"
	"github.com/LivTel/autoguider-sub002/fli/libfli"
)

func init() {
	hardware["fli"] = fli.Factory(libfli.Library{})
}
