/*Package config loads autoguider camera settings.

Settings come from three layers, later ones winning: built in defaults, a YAML
file and AGCCD_ environment variables.  Nested YAML is flattened with "." so

	ccd:
	  andor:
	    setup:
	      selected_camera: 0

is read as ccd.andor.setup.selected_camera.  In the environment, "__" separates
key segments: AGCCD_CCD__ANDOR__SETUP__SELECTED_CAMERA=1.
*/
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
	yml "gopkg.in/yaml.v2"
)

// EnvPrefix marks environment variables that override the file
const EnvPrefix = "AGCCD_"

// ErrMissing is returned for a key which is set in no layer
var ErrMissing = errors.New("configuration key not set")

// Defaults is the bottom layer of every Config
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"ccd.driver.name":                  "andor",
		"ccd.andor.setup.selected_camera":  0,
		"ccd.andor.setup.config_directory": "/usr/local/etc/andor",
		"ccd.andor.simulate":               false,
		"ccd.fli.setup.device_name":        "/dev/fliusb0",
		"ccd.fli.simulate":                 false,
		"ccd.temperature.target":           -40.0,
		"ccd.temperature.cooler.on":        true,
		"ccd.temperature.cooler.off":       true,
		"ccd.temperature.ramp_to_ambient":  false,
		"ccd.exposure.loop.pause.length":   1,
		"ccd.exposure.timeout.margin":      30000,
		"ccd.field.ncols":                  1024,
		"ccd.field.nrows":                  1024,
		"ccd.field.x_bin":                  1,
		"ccd.field.y_bin":                  1,
		"ccd.log.level":                    "info",
		"ccd.log.filter":                   "all",
		"http.addr":                        ":8000",
		"http.root":                        "/",
		"recorder.root":                    "",
		"recorder.prefix":                  "agccd",
		"recorder.enabled":                 false,
		"mqtt.broker":                      "",
		"mqtt.topic":                       "autoguider/ccd",
		"mqtt.client_id":                   "agccd",
		"telemetry.schedule":               "@every 30s",
	}
}

// Config is a layered key lookup.  It satisfies ccd.Config.
type Config struct {
	k *koanf.Koanf
}

// New returns a Config of the defaults overlaid with values, which may be
// nil.  No file or environment is read.
func New(values map[string]interface{}) *Config {
	k := koanf.New(".")
	// confmap never fails on a map
	k.Load(confmap.Provider(Defaults(), "."), nil)
	if values != nil {
		k.Load(confmap.Provider(values, "."), nil)
	}
	return &Config{k: k}
}

// Load reads the defaults, then path if it exists, then the environment.
// A missing file is not an error; an unreadable or malformed one is.
func Load(path string) (*Config, error) {
	c := New(nil)
	if path != "" {
		if err := c.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(errors.Cause(err)) && !strings.Contains(err.Error(), "no such") {
				return nil, errors.Wrapf(err, "load configuration file %s", path)
			}
		}
	}
	err := c.k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, errors.Wrap(err, "load environment")
	}
	return c, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "__", ".", -1)
}

// Set overrides key, as a command line flag would
func (c *Config) Set(key string, value interface{}) error {
	return c.k.Load(confmap.Provider(map[string]interface{}{key: value}, "."), nil)
}

// Exists reports if key is set
func (c *Config) Exists(key string) bool {
	return c.k.Exists(key)
}

// Keys lists every set key
func (c *Config) Keys() []string {
	return c.k.Keys()
}

func (c *Config) get(key string) (interface{}, error) {
	if !c.k.Exists(key) {
		return nil, errors.Wrap(ErrMissing, key)
	}
	return c.k.Get(key), nil
}

// String returns key as a string.  Numbers and booleans are formatted.
func (c *Config) String(key string) (string, error) {
	v, err := c.get(key)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// Int returns key as an int
func (c *Config) Int(key string) (int, error) {
	v, err := c.get(key)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != float64(int(t)) {
			return 0, errors.Errorf("%s: %v is not an integer", key, t)
		}
		return int(t), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, errors.Wrapf(err, "%s", key)
		}
		return i, nil
	}
	return 0, errors.Errorf("%s: %T is not an integer", key, v)
}

// Float returns key as a float64
func (c *Config) Float(key string) (float64, error) {
	v, err := c.get(key)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "%s", key)
		}
		return f, nil
	}
	return 0, errors.Errorf("%s: %T is not a number", key, v)
}

// Bool returns key as a bool.  Strings are parsed with strconv.ParseBool.
func (c *Config) Bool(key string) (bool, error) {
	v, err := c.get(key)
	if err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, errors.Wrapf(err, "%s", key)
		}
		return b, nil
	}
	return false, errors.Errorf("%s: %T is not a boolean", key, v)
}

// Write dumps the effective configuration as nested YAML
func (c *Config) Write(w io.Writer) error {
	return yml.NewEncoder(w).Encode(c.k.Raw())
}
