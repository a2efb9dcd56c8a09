package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
)

// Config holds lgctl's configuration: the default database path, whether
// the built-in verifiers are registered, and the default render-journal
// entry limit.
type Config struct {
	DBPath           string `json:"db_path,omitempty"`
	InitBuiltins     bool   `json:"init_builtins,omitempty"`
	JournalPageLimit int    `json:"journal_page_limit,omitempty"`
}

// DefaultConfig returns lgctl's defaults: no implicit path, built-in
// verifiers registered (bridge.New itself registers none, so lgctl does it
// on open), render_journal's page size left at the blockfile
// package's own constant (0 means "use package default").
func DefaultConfig() Config {
	return Config{InitBuiltins: true}
}

// ConfigFileName is the default per-directory config file name.
const ConfigFileName = ".lgctl.json"

func getGlobalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "lgctl", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "lgctl", "config.json")
	}

	return ""
}

// LoadConfigInput parameterizes LoadConfig the way the teacher's
// ticket.LoadConfigInput does for tk.
type LoadConfigInput struct {
	WorkDir    string
	ConfigPath string
	DBPath     string
	Env        map[string]string
}

// LoadConfig merges, in increasing precedence: built-in defaults, the
// global config file, a project-local .lgctl.json, an explicit
// --config file, and explicit flag overrides.
func LoadConfig(in LoadConfigInput) (Config, error) {
	cfg := DefaultConfig()

	if path := getGlobalConfigPath(in.Env); path != "" {
		if err := mergeConfigFile(&cfg, path, false); err != nil {
			return Config{}, err
		}
	}

	projectPath := filepath.Join(in.WorkDir, ConfigFileName)
	if err := mergeConfigFile(&cfg, projectPath, false); err != nil {
		return Config{}, err
	}

	if in.ConfigPath != "" {
		if err := mergeConfigFile(&cfg, in.ConfigPath, true); err != nil {
			return Config{}, err
		}
	}

	if in.DBPath != "" {
		cfg.DBPath = in.DBPath
	}

	return cfg, nil
}

// mergeConfigFile reads a hujson (JSON-with-comments) config file and
// overlays its fields onto cfg. If required is false, a missing file is
// silently skipped; a malformed file is always an error.
func mergeConfigFile(cfg *Config, path string, required bool) error {
	raw, err := os.ReadFile(path) //nolint:gosec // operator-controlled config path
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}

		return fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	var overlay Config
	if err := json.Unmarshal(standardized, &overlay); err != nil {
		return fmt.Errorf("decoding config %s: %w", path, err)
	}

	if overlay.DBPath != "" {
		cfg.DBPath = overlay.DBPath
	}

	if overlay.JournalPageLimit != 0 {
		cfg.JournalPageLimit = overlay.JournalPageLimit
	}

	// A bool's zero value cannot mean "absent", so look for the key itself.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(standardized, &keys); err != nil {
		return fmt.Errorf("decoding config %s: %w", path, err)
	}

	if _, ok := keys["init_builtins"]; ok {
		cfg.InitBuiltins = overlay.InitBuiltins
	}

	return nil
}

// resolvePath joins a possibly-relative path against workDir, matching the
// teacher's ticketDir resolution in ls.go.
func resolvePath(workDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(workDir, path)
}

// envFromEnviron mirrors os.Environ() into a lookup map.
func envFromEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))

	for _, e := range environ {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}

	return env
}
