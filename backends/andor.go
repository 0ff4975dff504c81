//go:build andor

package backends

import (
	"github.com/LivTel/autoguider-sub002/andor"
	"github.com/LivTel/autoguider-sub002/andor/sdk2"
)

func init() {
	hardware["andor"] = andor.Factory(sdk2.Library{})
}
