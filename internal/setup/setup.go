// Package setup registers the tier-classifier MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// DefaultServerName is the key the server is registered under.
const DefaultServerName = "tier-classifier"

const binaryName = "tier-classifier"

// ServerEntry is one entry of a client's mcpServers map.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ClientConfig is an MCP client configuration file. Keys other than mcpServers
// are kept as-is so that registering does not drop client settings.
type ClientConfig struct {
	MCPServers map[string]ServerEntry
	other      map[string]json.RawMessage
}

// Options controls Register.
type Options struct {
	// ClientConfigPath overrides the platform default client config location.
	ClientConfigPath string

	// BinaryPath is the tier-classifier executable; found on PATH when empty.
	BinaryPath string

	// ConfigPath is passed to the server as --config when set.
	ConfigPath string

	ServerName string
	Env        map[string]string
}

// Status describes how the server is registered with a client.
type Status struct {
	ClientConfigPath string
	Registered       bool
	Entry            ServerEntry
	Issues           []string
}

// ClientConfigPath returns the desktop client's config file for this platform.
func ClientConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		// Try XDG config first, then fallback
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads a client config. A missing file yields an empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	config := &ClientConfig{
		MCPServers: make(map[string]ServerEntry),
		other:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read client config: %w", err)
	}

	if err := json.Unmarshal(data, &config.other); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if raw, ok := config.other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		if config.MCPServers == nil {
			config.MCPServers = make(map[string]ServerEntry)
		}
		delete(config.other, "mcpServers")
	}
	return config, nil
}

// Save writes the config to path, creating its directory.
func (c *ClientConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := make(map[string]any, len(c.other)+1)
	for k, v := range c.other {
		doc[k] = v
	}
	doc["mcpServers"] = c.MCPServers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal client config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write client config: %w", err)
	}
	return nil
}

// Register adds or replaces the server entry in the client config and returns
// the path written.
func Register(opts Options) (string, error) {
	path, err := resolveClientPath(opts.ClientConfigPath)
	if err != nil {
		return "", err
	}

	config, err := LoadClientConfig(path)
	if err != nil {
		return "", err
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		if binaryPath, err = findBinary(); err != nil {
			return "", fmt.Errorf("could not find server binary: %w", err)
		}
	}

	entry := ServerEntry{Command: binaryPath, Args: []string{"mcp"}}
	if opts.ConfigPath != "" {
		abs, err := filepath.Abs(opts.ConfigPath)
		if err != nil {
			return "", fmt.Errorf("failed to resolve config path: %w", err)
		}
		entry.Args = append(entry.Args, "--config", abs)
	}
	if len(opts.Env) > 0 {
		entry.Env = make(map[string]string, len(opts.Env))
		for k, v := range opts.Env {
			entry.Env[k] = v
		}
	}

	config.MCPServers[serverName(opts.ServerName)] = entry
	if err := config.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// GetStatus reports whether the server is registered and whether its binary exists.
func GetStatus(clientConfigPath, name string) (*Status, error) {
	path, err := resolveClientPath(clientConfigPath)
	if err != nil {
		return nil, err
	}
	status := &Status{ClientConfigPath: path}

	config, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	entry, ok := config.MCPServers[serverName(name)]
	if !ok {
		status.Issues = append(status.Issues, fmt.Sprintf("%s is not registered", serverName(name)))
		return status, nil
	}
	status.Registered = true
	status.Entry = entry

	info, err := os.Stat(entry.Command)
	switch {
	case os.IsNotExist(err):
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found: %s", entry.Command))
	case err == nil && info.Mode()&0111 == 0:
		status.Issues = append(status.Issues, fmt.Sprintf("Server binary is not executable: %s", entry.Command))
	}
	return status, nil
}

func resolveClientPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return ClientConfigPath()
}

func serverName(name string) string {
	if name == "" {
		return DefaultServerName
	}
	return name
}

// findBinary prefers PATH, then the running executable.
func findBinary() (string, error) {
	if path, err := exec.LookPath(binaryName); err == nil {
		return filepath.Abs(path)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("binary '%s' not found on PATH", binaryName)
	}
	return exe, nil
}
