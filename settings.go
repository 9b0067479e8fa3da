package pihat

import (
	"fmt"
	"io/ioutil"
	"log"
	"runtime"
	"strings"
	"time"

	"github.com/buger/jsonparser"
)

// keep settings generic strings, type-convert on the fly
type settings struct {
	settings map[string]interface{}
}

func defaultSettings() *settings {
	s := make(map[string]interface{})

	// setting the type here makes the conversion "automatic" later
	s["logFile"] = ""
	s["i2c_bus"] = 1
	s["sensor_device"] = byte(0x77)
	s["display_device"] = byte(0x70)

	// fixed for this board revision
	s["pin_red_led"] = 6
	s["pin_green_led"] = 19
	s["pin_blue_led"] = 26
	s["pin_button_a"] = 21
	s["pin_button_b"] = 20
	s["pin_button_c"] = 16
	s["pin_buzzer"] = 13
	s["pin_strip_data"] = 10
	s["pin_strip_clock"] = 11
	s["pin_strip_cs"] = 8

	s["buttonPollTime"], _ = time.ParseDuration("50ms")
	s["temperaturePollTime"], _ = time.ParseDuration("5s")
	s["pressurePollTime"], _ = time.ParseDuration("7s")
	s["actionRetryTime"], _ = time.ParseDuration("500ms")
	s["buzzTime"], _ = time.ParseDuration("300ms")

	s["demoText"] = "HELO"
	s["keyboard_buttons"] = false

	// off-Pi everything is simulated
	sim := true
	if runtime.GOARCH == "arm" || runtime.GOARCH == "arm64" {
		sim = false
	}
	s["i2c_simulated"] = sim
	s["pins_simulated"] = sim

	return &settings{settings: s}
}

func (s *settings) settingsFromJSON(data []byte) error {
	tmp := defaultSettings()
	for k, initVal := range tmp.settings {
		// ignore missing fields
		if _, _, _, err := jsonparser.Get(data, k); err != nil {
			continue
		}

		var err error
		switch initVal.(type) {
		case uint8:
			var val int64
			val, err = jsonparser.GetInt(data, k)
			if err == nil {
				s.settings[k] = byte(val)
			}
		case int:
			var val int64
			val, err = jsonparser.GetInt(data, k)
			if err == nil {
				s.settings[k] = int(val)
			}
		case bool:
			var bVal bool
			bVal, err = jsonparser.GetBoolean(data, k)
			if err != nil {
				// try true and false
				sv, _ := jsonparser.GetString(data, k)
				switch strings.ToLower(sv) {
				case "true":
					bVal = true
				case "false":
					bVal = false
				default:
					// nothing, fail
					return err
				}
				err = nil
			}
			s.settings[k] = bVal
		case time.Duration:
			var dur string
			dur, err = jsonparser.GetString(data, k)
			if err == nil {
				var dur2 time.Duration
				dur2, err = time.ParseDuration(dur)
				if err == nil {
					s.settings[k] = dur2
				}
			}
		case string:
			s.settings[k], err = jsonparser.GetString(data, k)
		default:
			err = fmt.Errorf("Bad type: %T", initVal)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// initSettings loads defaults, then overlays the config file when one
// is given
func initSettings(configFile string) (*settings, error) {
	s := defaultSettings()

	if configFile == "" {
		return s, nil
	}

	data, err := ioutil.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	log.Printf("Reading configuration from '%s'", configFile)
	if err := s.settingsFromJSON(data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *settings) GetString(key string) string {
	switch v := s.settings[key].(type) {
	case string:
		return v
	default:
		return ""
	}
}

func (s *settings) GetBool(key string) bool {
	switch v := s.settings[key].(type) {
	case bool:
		return v
	default:
		return false
	}
}

func (s *settings) GetDuration(key string) time.Duration {
	switch v := s.settings[key].(type) {
	case time.Duration:
		return v
	default:
		return -1
	}
}

func (s *settings) GetByte(key string) byte {
	switch v := s.settings[key].(type) {
	case byte:
		return v
	case int: // cast to byte
		return byte(v)
	default:
		return 0
	}
}

func (s *settings) GetInt(key string) int {
	switch v := s.settings[key].(type) {
	case int:
		return v
	default:
		return 0
	}
}

func (s *settings) Dump() {
	for k, v := range s.settings {
		log.Printf("%s : %T: %v\n", k, v, v)
	}
}
