package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// configHeader opens every generated configuration file.
const configHeader = `# fseditor Configuration File
#
# Values below are the defaults. Every key can be overridden with an
# environment variable: FSEDITOR_ followed by the key path in upper case,
# e.g. FSEDITOR_ADAPTERS_HTTP_PORT=8081.
`

// sectionComments annotates the top-level sections of a generated file.
var sectionComments = map[string]string{
	"logging": `# Logging
#   level:  DEBUG, INFO, WARN or ERROR
#   format: text or json
#   output: stdout, stderr or a file path`,
	"server": `# Server-wide settings`,
	"filesystem": `# Storage backend exposed by the editor
#   type: local, memory, badger, sqlite or s3
# Options of the selected backend go in the section of the same name:
#   local:  {path, create_dir}
#   memory: {max_bytes}
#   badger: {db_path, in_memory, max_bytes}
#   sqlite: {path, max_bytes}
#   s3:     {region, bucket, key_prefix, endpoint, access_key_id,
#            secret_access_key, force_path_style, part_size, max_retries}
# gc removes content orphaned by a crash (badger only).`,
	"editor": `# HTTP file editor
# Basic authentication is enabled when username and password are set.`,
	"identity": `# Device identity, sent as X-Device-Id
#   source: interface (host NIC), static (mac below) or none`,
	"metrics":  `# Prometheus endpoint, served on its own port`,
	"adapters": `# Protocol adapters`,
}

// InitConfig writes a default configuration file at the default location.
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path of the written file
//   - error: If the file exists (without force) or cannot be written
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file at path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may hold credentials
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// generateYAMLWithComments renders cfg as YAML with a comment above each
// top-level section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var root yaml.Node
	if err := root.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	if root.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(root.Content); i += 2 {
			key := root.Content[i]
			if c, ok := sectionComments[key.Value]; ok {
				key.HeadComment = c
			}
		}
	}

	var b strings.Builder
	b.WriteString(configHeader)
	b.WriteString("\n")

	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	return b.String(), nil
}
