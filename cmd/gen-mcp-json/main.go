// Command gen-mcp-json writes a .mcp.json that starts the server with the
// extension, preference and notification settings currently in effect.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	cfg "github.com/alex-galey/restricted-domains/pkg/config"
)

const serverName = "restricted-domains"

type mcpJSON struct {
	MCPServers map[string]serverDef `json:"mcpServers"`
}

type serverDef struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

func main() {
	config, err := cfg.LoadConfig()
	if err != nil {
		fail("failed to load config", err)
	}

	data, err := json.MarshalIndent(mcpJSON{
		MCPServers: map[string]serverDef{
			serverName: {
				Command: command(),
				Args:    []string{},
				Env:     envFromConfig(config),
			},
		},
	}, "", "  ")
	if err != nil {
		fail("failed to marshal .mcp.json", err)
	}

	wd, _ := os.Getwd()
	root, err := findModuleRoot(wd)
	if err != nil {
		fail("failed to locate module root", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".mcp.json"), append(data, '\n'), 0o644); err != nil {
		fail("failed to write .mcp.json", err)
	}
}

// envFromConfig returns the environment that reproduces the extension,
// preference and notification settings of c.
func envFromConfig(c *cfg.ServerConfig) map[string]string {
	return map[string]string{
		envKey("extension.id"):           c.Extension.ID,
		envKey("extension.domains"):      strings.Join(c.Extension.Domains, ","),
		envKey("prefs.backend"):          c.Prefs.Backend,
		envKey("prefs.path"):             c.Prefs.Path,
		envKey("notifications.help_url"): c.Notifications.HelpURL,
		envKey("notifications.locale"):   c.Notifications.Locale,
		envKey("notifications.windows"):  strconv.Itoa(c.Notifications.Windows),
	}
}

func envKey(key string) string {
	return cfg.EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// command is the server binary, RESTRICTED_DOMAINS_GEN_COMMAND when set.
func command() string {
	if c := os.Getenv(cfg.EnvPrefix + "_GEN_COMMAND"); c != "" {
		return c
	}
	return filepath.ToSlash(filepath.Join("./build", serverName))
}

func findModuleRoot(dir string) (string, error) {
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
