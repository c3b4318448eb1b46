// Package projectconfig loads the per-project flowcode.hcl file.
package projectconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// FileName is the project config file looked up in the project root.
const FileName = "flowcode.hcl"

// Defaults applied when the file or an attribute is absent.
const (
	DefaultOutputPath = "src/logic"
	DefaultMode       = "project"
)

// Config is the decoded project configuration.
//
//	project_name = "shop"
//	output_path  = "src/logic"
//	plugins      = ["@flowcode/plugin-request"]
//
//	compile {
//	  module_base_url = "https://esm.sh"
//	  mode            = "project"
//	}
type Config struct {
	ProjectName string         `hcl:"project_name,optional"`
	OutputPath  string         `hcl:"output_path,optional"`
	Plugins     []string       `hcl:"plugins,optional"`
	Compile     *CompileConfig `hcl:"compile,block"`
}

// CompileConfig overrides compiler settings for this project.
type CompileConfig struct {
	ModuleBaseURL string `hcl:"module_base_url,optional"`
	Mode          string `hcl:"mode,optional"`
}

// Load reads flowcode.hcl from dir. A missing file yields defaults with the
// project name taken from the directory name.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := &Config{}
		cfg.applyDefaults(dir)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(dir, path, src)
}

// Decode parses src as a flowcode.hcl body. filename is used in diagnostics.
func Decode(dir, filename string, src []byte) (*Config, error) {
	cfg := &Config{}
	if err := hclsimple.Decode(filename, src, nil, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	if cfg.Compile != nil && cfg.Compile.Mode != "" &&
		cfg.Compile.Mode != "project" && cfg.Compile.Mode != "online" {
		return nil, fmt.Errorf("decode %s: compile.mode must be \"project\" or \"online\", got %q", filename, cfg.Compile.Mode)
	}
	cfg.applyDefaults(dir)
	return cfg, nil
}

func (c *Config) applyDefaults(dir string) {
	if c.ProjectName == "" {
		if abs, err := filepath.Abs(dir); err == nil {
			c.ProjectName = filepath.Base(abs)
		}
	}
	if c.OutputPath == "" {
		c.OutputPath = DefaultOutputPath
	}
	if c.Compile == nil {
		c.Compile = &CompileConfig{}
	}
	if c.Compile.Mode == "" {
		c.Compile.Mode = DefaultMode
	}
}

// OutputDir resolves OutputPath against the project root.
func (c *Config) OutputDir(root string) string {
	if filepath.IsAbs(c.OutputPath) {
		return c.OutputPath
	}
	return filepath.Join(root, c.OutputPath)
}
