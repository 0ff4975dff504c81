// Package backends assembles the catalog of camera backends this build
// supports.  Vendor libraries are linked in with the andor and fli build
// tags; without them, or when configured to, a backend is simulated.
package backends

import (
	"fmt"

	"github.com/LivTel/autoguider-sub002/andor"
	"github.com/LivTel/autoguider-sub002/ccd"
	"github.com/LivTel/autoguider-sub002/fli"
	log "github.com/sirupsen/logrus"
)

// hardware holds the factories of the vendor libraries compiled in
var hardware = map[string]ccd.Factory{}

// simulators are used when a backend's hardware is absent or
// ccd.<name>.simulate is set
var simulators = map[string]func() ccd.Factory{
	"andor": func() ccd.Factory { return andor.Factory(andor.NewSimulator()) },
	"fli":   func() ccd.Factory { return fli.Factory(fli.NewSimulator()) },
}

// Hardware reports if the vendor library of name is compiled in
func Hardware(name string) bool {
	_, ok := hardware[name]
	return ok
}

// Catalog returns every backend, each bound to its vendor library or a
// simulator
func Catalog(cfg ccd.Config) (*ccd.Catalog, error) {
	cat := &ccd.Catalog{}
	for name, sim := range simulators {
		simulate, err := cfg.Bool(fmt.Sprintf("ccd.%s.simulate", name))
		if err != nil {
			return nil, err
		}
		f, ok := hardware[name]
		switch {
		case simulate:
			f = sim()
		case !ok:
			log.WithField("backend", name).Debug("vendor library not compiled in, simulating")
			f = sim()
		}
		if err = cat.Add(name, f); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// Open builds the backend named by ccd.driver.name
func Open(cfg ccd.Config, lg *ccd.Logger) (ccd.Driver, error) {
	name, err := cfg.String(ccd.KeyDriverName)
	if err != nil {
		return nil, err
	}
	cat, err := Catalog(cfg)
	if err != nil {
		return nil, err
	}
	return cat.Open(name, cfg, lg)
}
