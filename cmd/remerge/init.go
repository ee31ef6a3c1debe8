package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/remerge-dev/remerge/internal/configdata"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// remergeMCPEntry is the MCP server configuration for the remerge binary.
var remergeMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "remerge",
  "args": ["-serve-mcp"]
}`)

// runInit installs the starter configuration and registers the MCP server
// in the current project's .mcp.json.
func runInit(args []string) error {
	var force bool
	var configPath string

	fs := flag.NewFlagSet("remerge init", flag.ContinueOnError)
	fs.BoolVar(&force, "force", false, "overwrite existing files")
	fs.StringVar(&configPath, "config", defaultConfigPath(), "where to write the starter configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := writeStarterConfig(configPath, force); err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := mergeMCPConfig(filepath.Join(cwd, ".mcp.json"), force); err != nil {
		return err
	}

	fmt.Printf("\nSetup complete. Edit %s to configure endpoints.\n", configPath)
	return nil
}

func writeStarterConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("  skipped %s (exists, use -force to overwrite)\n", path)
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, configdata.StarterConfig, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	fmt.Printf("  created %s\n", path)
	return nil
}

// mergeMCPConfig creates or merges the remerge entry into .mcp.json.
func mergeMCPConfig(mcpPath string, force bool) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["remerge"]; exists && !force {
		fmt.Printf("  skipped .mcp.json remerge entry (exists, use -force to overwrite)\n")
		return nil
	}

	cfg.MCPServers["remerge"] = remergeMCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Printf("  %s .mcp.json with remerge MCP server\n", action)
	return nil
}
