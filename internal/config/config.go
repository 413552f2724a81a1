// Package config implements C13: loading one connector's TOML
// configuration file into the ConnectorConfig shape of SPEC_FULL.md §3.
// Grounded on the teacher's internal/parser/toml package: read file ->
// toml.Decode -> MetaData.Undecoded() unknown-key diagnostic -> per-field
// validation, adapted from "schema file describing tables/columns" to
// "one connector's connection and sync settings."
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"synchdb/internal/model"
)

// ConnectorConfig is SPEC_FULL.md §3's ConnectorConfig.
type ConnectorConfig struct {
	Name           string
	SourceDialect  model.SourceDialect
	Hostname       string
	Port           int
	User           string
	Password       string
	SourceDB       string
	TableList      []string
	SnapshotMode   string
	TargetDSN      string
	RuleFile       string
	PollIntervalMS int
	DirectApply    bool
}

// tomlConnectorConfig is the on-disk TOML shape, field-for-field with
// ConnectorConfig but using toml tags and a raw (unvalidated) dialect
// string, mirroring the teacher's schemaFile/tomlDatabase split between
// wire shape and validated domain shape.
type tomlConnectorConfig struct {
	Name           string   `toml:"name"`
	SourceDialect  string   `toml:"source_dialect"`
	Hostname       string   `toml:"hostname"`
	Port           int      `toml:"port"`
	User           string   `toml:"user"`
	Password       string   `toml:"password"`
	SourceDB       string   `toml:"source_db"`
	TableList      []string `toml:"table_list"`
	SnapshotMode   string   `toml:"snapshot_mode"`
	TargetDSN      string   `toml:"target_dsn"`
	RuleFile       string   `toml:"rule_file"`
	PollIntervalMS int      `toml:"poll_interval_ms"`
	DirectApply    bool     `toml:"direct_apply"`
}

// validDialects is the closed set SPEC_FULL.md §4.9 validates
// source_dialect against.
var validDialects = map[string]model.SourceDialect{
	"mysql":     model.DialectMySQL,
	"sqlserver": model.DialectSQLServer,
	"oracle":    model.DialectOracle,
}

// LoadConnectorConfig opens and decodes the TOML file at path.
func LoadConnectorConfig(path string) (*ConnectorConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open file %q: %w", path, err)
	}
	defer f.Close()

	return DecodeConnectorConfig(f)
}

// DecodeConnectorConfig decodes TOML content from r. Split out from
// LoadConnectorConfig so tests can exercise it without touching the
// filesystem, matching the teacher's Parser.Parse/ParseFile split.
func DecodeConnectorConfig(r io.Reader) (*ConnectorConfig, error) {
	var raw tomlConnectorConfig
	meta, err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("config: decode error: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: unknown key(s) %v", undecoded)
	}

	dialect, ok := validDialects[raw.SourceDialect]
	if !ok {
		return nil, fmt.Errorf("config: unsupported source_dialect %q; supported: mysql, sqlserver, oracle", raw.SourceDialect)
	}

	if raw.Name == "" {
		return nil, fmt.Errorf("config: name is required")
	}
	if raw.TargetDSN == "" {
		return nil, fmt.Errorf("config: target_dsn is required")
	}

	return &ConnectorConfig{
		Name:           raw.Name,
		SourceDialect:  dialect,
		Hostname:       raw.Hostname,
		Port:           raw.Port,
		User:           raw.User,
		Password:       raw.Password,
		SourceDB:       raw.SourceDB,
		TableList:      raw.TableList,
		SnapshotMode:   raw.SnapshotMode,
		TargetDSN:      raw.TargetDSN,
		RuleFile:       raw.RuleFile,
		PollIntervalMS: raw.PollIntervalMS,
		DirectApply:    raw.DirectApply,
	}, nil
}
