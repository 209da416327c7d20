// Package sniff discovers the database configuration and assets path of a site by running a sniffer script on it.
package sniff

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	sspak "github.com/vansante/go-sspak"
)

// Keys reported by the sniffer
const (
	KeyDatabaseKind     = "db_type"
	KeyDatabaseHost     = "db_server"
	KeyDatabasePort     = "db_port"
	KeyDatabaseUser     = "db_username"
	KeyDatabasePassword = "db_password"
	KeyDatabaseName     = "db_database"
	KeyAssetsPath       = "assets_path"
)

// Profile is the discovered configuration of a site
type Profile struct {
	DatabaseKind     string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	AssetsPath       string

	// Extra holds all other reported keys
	Extra map[string]string
}

// NewProfile maps a sniffer record onto a Profile. The database kind and the assets path are required.
func NewProfile(record map[string]string) (*Profile, error) {
	p := &Profile{Extra: make(map[string]string)}
	for key, value := range record {
		switch key {
		case KeyDatabaseKind:
			p.DatabaseKind = value
		case KeyDatabaseHost:
			p.DatabaseHost = value
		case KeyDatabasePort:
			p.DatabasePort = value
		case KeyDatabaseUser:
			p.DatabaseUser = value
		case KeyDatabasePassword:
			p.DatabasePassword = value
		case KeyDatabaseName:
			p.DatabaseName = value
		case KeyAssetsPath:
			p.AssetsPath = value
		default:
			p.Extra[key] = value
		}
	}

	if p.DatabaseKind == "" {
		return nil, fmt.Errorf("%w: no %s reported", sspak.ErrDiscoveryFailed, KeyDatabaseKind)
	}
	if p.AssetsPath == "" {
		return nil, fmt.Errorf("%w: no %s reported", sspak.ErrDiscoveryFailed, KeyAssetsPath)
	}
	return p, nil
}

// Parse parses sniffer output into a Profile. The record is either a PHP serialized array or a JSON or YAML object.
// Noise printed before the record, such as PHP notices, is skipped.
func Parse(output []byte) (*Profile, error) {
	data := recordLine(output)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty sniffer output", sspak.ErrDiscoveryFailed)
	}

	var record map[string]string
	var err error
	if bytes.HasPrefix(data, []byte("a:")) {
		record, err = unserializePHP(data)
	} else {
		record, err = decodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: could not parse sniffer output %q: %w", sspak.ErrDiscoveryFailed, output, err)
	}
	return NewProfile(record)
}

// recordLine returns the last line holding a serialized PHP array, or the whole trimmed output
func recordLine(output []byte) []byte {
	output = bytes.TrimSpace(output)
	lines := bytes.Split(output, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if bytes.HasPrefix(line, []byte("a:")) {
			return line
		}
	}
	return output
}

func decodeYAML(data []byte) (map[string]string, error) {
	var raw map[string]any
	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("not an object")
	}

	record := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
			record[key] = ""
		case map[string]any, []any:
			return nil, fmt.Errorf("key %s: %w", key, errNestedArray)
		case string:
			record[key] = v
		default:
			record[key] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return record, nil
}
