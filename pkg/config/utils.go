package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

// initConfig decodes file into target, picking the decoder by file suffix.
func initConfig(file *os.File, target any) error {
	if strings.HasSuffix(file.Name(), ".toml") {
		_, err := toml.NewDecoder(file).Decode(target)
		return err
	}
	if strings.HasSuffix(file.Name(), ".yaml") || strings.HasSuffix(file.Name(), ".yml") {
		return yaml.NewDecoder(file).Decode(target)
	}
	if strings.HasSuffix(file.Name(), ".json") {
		return json.NewDecoder(file).Decode(target)
	}
	return fmt.Errorf("unknown config format type: %s. Use .toml, .yaml or .json suffix in filename", file.Name())
}

func ValueOrDefaultDuration(value time.Duration, def time.Duration) time.Duration {
	if value == 0 {
		return def
	}
	return value
}

func ValueOrDefaultInt(value int, def int) int {
	if value == 0 {
		return def
	}
	return value
}

func ValueOrDefaultString(value string, def string) string {
	if value == "" {
		return def
	}
	return value
}
