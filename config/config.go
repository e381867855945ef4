// Package config loads the peripheral's settings and service definitions
// from a YAML file.
//
//	name: gattd
//	appearance: 0x0080
//	transport:
//	  link: /usr/local/libexec/gattd/l2cap-ble
//	  adv: /usr/local/libexec/gattd/hci-ble
//	advertising:
//	  enabled: true
//	services:
//	  - uuid: "180f"
//	    characteristics:
//	      - uuid: "2a19"
//	        properties: read
//	        value: [100]
//	        descriptors:
//	          - uuid: "2901"
//	            value: Battery level
package config

import (
	"encoding/hex"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	log "github.com/mgutz/logxi/v1"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	yaml "gopkg.in/yaml.v2"

	ble "github.com/halseth/bleno-fork"
)

var logger = log.New("config")

// DefaultFile is the configuration file used when none is given.
const DefaultFile = "~/.gattd.yml"

// Config is the content of a configuration file.
type Config struct {
	Name        string      `yaml:"name"`
	Appearance  interface{} `yaml:"appearance"`
	Transport   Transport   `yaml:"transport"`
	Advertising Advertising `yaml:"advertising"`
	Services    []Service   `yaml:"services"`
}

// Transport locates the helpers that own the radio. Either Link names the
// link helper executable, or Serial names a device speaking the same line
// protocol.
type Transport struct {
	Link   string `yaml:"link"`
	Adv    string `yaml:"adv"`
	Serial string `yaml:"serial"`
	Baud   int    `yaml:"baud"`
}

// Advertising controls what the peripheral advertises.
type Advertising struct {
	Enabled bool `yaml:"enabled"`

	// Services lists the service UUIDs to advertise. All configured
	// services are advertised when it is empty.
	Services []string `yaml:"services"`
}

// Service defines a primary service.
type Service struct {
	UUID            string           `yaml:"uuid"`
	Includes        []string         `yaml:"includes"`
	Characteristics []Characteristic `yaml:"characteristics"`
}

// Characteristic defines a characteristic with a static or writable value.
// Properties and Secure take a list of property names or a single string
// such as "read|write". Value takes a string, a 0x prefixed hex string or
// a list of bytes.
type Characteristic struct {
	UUID        string       `yaml:"uuid"`
	Properties  interface{}  `yaml:"properties"`
	Secure      interface{}  `yaml:"secure"`
	Value       interface{}  `yaml:"value"`
	Descriptors []Descriptor `yaml:"descriptors"`
}

// Descriptor defines a read-only descriptor.
type Descriptor struct {
	UUID  string      `yaml:"uuid"`
	Value interface{} `yaml:"value"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Name:        "gattd",
		Advertising: Advertising{Enabled: true},
	}
}

// Load reads the configuration file at path. A missing file at the default
// location yields Default.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	p, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't expand %s", path)
	}
	b, err := ioutil.ReadFile(filepath.Clean(p))
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			logger.Info("no config file, using defaults", "path", p)
			return Default(), nil
		}
		return nil, errors.Wrap(err, "can't read config")
	}
	logger.Debug("loaded config", "path", p)
	return Parse(b)
}

// Parse parses the content of a configuration file.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "can't parse config")
	}
	if c.Name == "" {
		return nil, errors.New("name must not be empty")
	}
	if _, err := c.AppearanceValue(); err != nil {
		return nil, err
	}
	return c, nil
}

// AppearanceValue returns the configured GAP appearance.
func (c *Config) AppearanceValue() (uint16, error) {
	if c.Appearance == nil {
		return ble.DefaultAppearance, nil
	}
	v, err := cast.ToIntE(c.Appearance)
	if err != nil || v < 0 || v > 0xFFFF {
		return 0, errors.Errorf("invalid appearance %v", c.Appearance)
	}
	return uint16(v), nil
}

// BuildServices turns the service definitions into services ready for a
// GATT server.
func (c *Config) BuildServices() ([]*ble.Service, error) {
	var ss []*ble.Service
	byUUID := make(map[string]*ble.Service)
	for i, sd := range c.Services {
		s, err := sd.build()
		if err != nil {
			return nil, errors.Wrapf(err, "service %d", i)
		}
		ss = append(ss, s)
		byUUID[s.UUID.String()] = s
	}
	for i, sd := range c.Services {
		for _, inc := range sd.Includes {
			u, err := ble.Parse(inc)
			if err != nil {
				return nil, errors.Wrapf(err, "service %d: include", i)
			}
			is, ok := byUUID[u.String()]
			if !ok {
				return nil, errors.Errorf("service %d: included service %s not defined", i, u)
			}
			ss[i].IncludeService(is)
		}
	}
	return ss, nil
}

// AdvertisedUUIDs returns the service UUIDs to advertise.
func (c *Config) AdvertisedUUIDs() ([]ble.UUID, error) {
	var uu []ble.UUID
	if len(c.Advertising.Services) == 0 {
		for _, sd := range c.Services {
			u, err := ble.Parse(sd.UUID)
			if err != nil {
				return nil, err
			}
			uu = append(uu, u)
		}
		return uu, nil
	}
	for _, s := range c.Advertising.Services {
		u, err := ble.Parse(s)
		if err != nil {
			return nil, errors.Wrap(err, "advertised service")
		}
		uu = append(uu, u)
	}
	return uu, nil
}

func (sd Service) build() (*ble.Service, error) {
	u, err := ble.Parse(sd.UUID)
	if err != nil {
		return nil, err
	}
	s := ble.NewService(u)
	for i, cd := range sd.Characteristics {
		c, err := cd.build()
		if err != nil {
			return nil, errors.Wrapf(err, "characteristic %d", i)
		}
		s.AddCharacteristic(c)
	}
	return s, nil
}

func (cd Characteristic) build() (*ble.Characteristic, error) {
	u, err := ble.Parse(cd.UUID)
	if err != nil {
		return nil, err
	}
	props, err := parseProperties(cd.Properties)
	if err != nil {
		return nil, err
	}
	secure, err := parseProperties(cd.Secure)
	if err != nil {
		return nil, errors.Wrap(err, "secure")
	}
	v, err := parseValue(cd.Value)
	if err != nil {
		return nil, err
	}

	c := ble.NewCharacteristic(u)
	c.Property = props
	c.Secure = secure & props
	writable := props&(ble.CharWrite|ble.CharWriteNR) != 0
	switch {
	case v != nil:
		c.Value = v
	case props&ble.CharRead != 0 && !writable:
		return nil, errors.Errorf("read-only characteristic %s has no value", u)
	}
	for i, dd := range cd.Descriptors {
		du, err := ble.Parse(dd.UUID)
		if err != nil {
			return nil, errors.Wrapf(err, "descriptor %d", i)
		}
		dv, err := parseValue(dd.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "descriptor %d", i)
		}
		if dv == nil {
			dv = []byte{}
		}
		c.NewDescriptor(du).SetValue(dv)
	}
	return c, nil
}

func parseProperties(v interface{}) (ble.Property, error) {
	if v == nil {
		return 0, nil
	}
	var names []string
	if s, ok := v.(string); ok {
		names = strings.FieldsFunc(s, func(r rune) bool {
			return r == '|' || r == ',' || r == ' '
		})
	} else {
		ss, err := cast.ToStringSliceE(v)
		if err != nil {
			return 0, errors.Errorf("invalid properties %v", v)
		}
		names = ss
	}
	var p ble.Property
	for _, n := range names {
		q, err := ble.ParseProperty(n)
		if err != nil {
			return 0, err
		}
		p |= q
	}
	return p, nil
}

func parseValue(v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
			b, err := hex.DecodeString(v[2:])
			if err != nil {
				return nil, errors.Wrapf(err, "invalid hex value %q", v)
			}
			return b, nil
		}
		return []byte(v), nil
	case []interface{}:
		b := make([]byte, len(v))
		for i, e := range v {
			n, err := cast.ToIntE(e)
			if err != nil || n < 0 || n > 0xFF {
				return nil, errors.Errorf("invalid byte %v in value", e)
			}
			b[i] = byte(n)
		}
		return b, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil || n < 0 || n > 0xFF {
		return nil, errors.Errorf("invalid value %v", v)
	}
	return []byte{byte(n)}, nil
}
