package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, DefaultSourceDir), cfg.SourceDir)
	assert.Equal(t, filepath.Join(dir, DefaultModelsDir), cfg.ModelsDir)
	assert.Equal(t, filepath.Join(dir, DefaultRegistryFile), cfg.RegistryPath)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.False(t, cfg.Preserve)
	assert.Equal(t, dir, cfg.ProjectRoot)
}

func TestLoad_ConfigFileValues(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
source_dir: exports
models_dir: warehouse/models
workers: 8
preserve: true
catalog:
  path: catalog.yaml
translate:
  allow_functions: [MY_FN]
  renames:
    LPAD_X: LPAD
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "exports"), cfg.SourceDir)
	assert.Equal(t, filepath.Join(dir, "warehouse/models"), cfg.ModelsDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.Preserve)
	assert.Equal(t, filepath.Join(dir, "catalog.yaml"), cfg.CatalogPath())
	require.NotNil(t, cfg.Translate)
	assert.Equal(t, []string{"MY_FN"}, cfg.Translate.AllowFunctions)
	assert.Equal(t, "LPAD", cfg.Translate.Renames["LPAD_X"])
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "source_dir: from_file\n")
	t.Setenv("SQLMORPH_SOURCE_DIR", "from_env")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "from_env"), cfg.SourceDir)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")
	t.Setenv("SQLMORPH_MODELS_DIR", "from_env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("models-dir", "", "")
	flags.String("registry", "", "")
	require.NoError(t, flags.Parse([]string{"--models-dir", "from_flag", "--registry", "state.db"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "from_flag"), cfg.ModelsDir)
	// --registry maps to registry_path
	assert.Equal(t, filepath.Join(dir, "state.db"), cfg.RegistryPath)
}

func TestLoad_UnchangedFlagsAreIgnored(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "workers: 2\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("workers", 99, "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workers)
}

func TestLoad_MemoryRegistryNotResolved(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "registry_path: ':memory:'\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.RegistryPath)
}

func TestFindProjectRoot_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Equal(t, root, FindProjectRoot(nested))
	assert.Equal(t, "", FindProjectRoot(t.TempDir()))
}
