package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/opsbookhq/opsbook/internal/flagx"
	"github.com/opsbookhq/opsbook/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "15s"
// or as integer nanoseconds.
type JsonConfig struct {
	ServerURL     string         `json:"server_url"`
	DatabasePath  string         `json:"database_path"`
	User          string         `json:"user"`
	DrainInterval timex.Duration `json:"drain_interval"`
}

// parseJson overlays cfg with values loaded from the JSON file named by the
// -c / -config flags. Absent flags mean no JSON is loaded. Read or unmarshal
// errors panic; configuration is resolved before anything else starts.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.User != "" {
		cfg.User = jc.User
	}
	if jc.DrainInterval.Duration != 0 {
		cfg.DrainInterval = time.Duration(jc.DrainInterval.Duration)
	}
}
