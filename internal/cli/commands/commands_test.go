package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlmorph/sqlmorph/internal/cli"
)

const stageUnit = `<?xml version="1.0"?>
<unit name="LOAD_STAGE" kind="statement">
  <step name="INS" kind="insert" source="SRC_ORDERS" target="STG_ORDERS">
    <sql>INSERT INTO STG_ORDERS SELECT * FROM SRC_ORDERS WHERE ROWNUM &lt;= 10</sql>
  </step>
</unit>`

const dimUnit = `<?xml version="1.0"?>
<unit name="LOAD_DIM" kind="statement">
  <step name="INS" kind="insert" source="STG_ORDERS" target="DIM_ORDERS">
    <sql>INSERT INTO DIM_ORDERS SELECT NVL(id, 0), amount FROM STG_ORDERS</sql>
  </step>
</unit>`

// newProject writes a minimal project tree and returns its root.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	srcDir := filepath.Join(root, "units")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "stage.xml"), []byte(stageUnit), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "dim.xml"), []byte(dimUnit), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sqlmorph.yaml"),
		[]byte("registry_path: \":memory:\"\n"), 0o644))
	return root
}

// runCommand executes the CLI against the given project root.
func runCommand(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cmd := cli.NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, newProject(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlmorph v")
}

func TestExtractCommand(t *testing.T) {
	out, err := runCommand(t, newProject(t), "extract")
	require.NoError(t, err)
	assert.Contains(t, out, "LOAD_STAGE")
	assert.Contains(t, out, "LOAD_DIM")
	assert.Contains(t, out, "2 extracted, 0 skipped")
}

func TestPlanCommand(t *testing.T) {
	out, err := runCommand(t, newProject(t), "plan")
	require.NoError(t, err)
	assert.Contains(t, out, "Execution plan (2 groups)")
	assert.Contains(t, out, "[LOAD_STAGE] -> [LOAD_DIM]")
}

func TestPlanCommandJSON(t *testing.T) {
	out, err := runCommand(t, newProject(t), "plan", "--output", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"groups"`)
	assert.Contains(t, out, "LOAD_STAGE")
}

func TestPlanCommandAffected(t *testing.T) {
	out, err := runCommand(t, newProject(t), "plan", "--affected", "LOAD_STAGE")
	require.NoError(t, err)
	assert.Contains(t, out, "Units affected by LOAD_STAGE (2)")
	assert.Contains(t, out, "1: LOAD_STAGE")
	assert.Contains(t, out, "2: LOAD_DIM")
}

func TestPlanCommandAffectedUnknownUnit(t *testing.T) {
	_, err := runCommand(t, newProject(t), "plan", "--affected", "NO_SUCH")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown unit")
}

func TestPlanCommandUpstream(t *testing.T) {
	out, err := runCommand(t, newProject(t), "plan", "--upstream", "LOAD_DIM")
	require.NoError(t, err)
	assert.Contains(t, out, "Producers of LOAD_DIM (1)")
	assert.Contains(t, out, "LOAD_STAGE")
}

func TestPlanCommandListsEntryAndTerminalUnits(t *testing.T) {
	out, err := runCommand(t, newProject(t), "plan")
	require.NoError(t, err)
	assert.Contains(t, out, "entry units")
	assert.Contains(t, out, "terminal units")
}

func TestTranslateCommand(t *testing.T) {
	out, err := runCommand(t, newProject(t), "translate",
		"SELECT NVL(a, 0) FROM t")
	require.NoError(t, err)
	assert.Contains(t, out, "COALESCE(a, 0)")
	assert.Contains(t, out, "high")
}

func TestMigrateCommand(t *testing.T) {
	root := newProject(t)
	out, err := runCommand(t, root, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "2 produced")

	_, err = os.Stat(filepath.Join(root, "models", "LOAD_STAGE.sql"))
	assert.NoError(t, err)
}

func TestMigrateCommandCycleFails(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "units")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "a.xml"),
		[]byte(`<unit name="A" kind="statement"><step name="s" kind="insert" source="T_B" target="T_A"><sql>INSERT INTO T_A SELECT * FROM T_B</sql></step></unit>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "b.xml"),
		[]byte(`<unit name="B" kind="statement"><step name="s" kind="insert" source="T_A" target="T_B"><sql>INSERT INTO T_B SELECT * FROM T_A</sql></step></unit>`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sqlmorph.yaml"),
		[]byte("registry_path: \":memory:\"\n"), 0o644))

	_, err := runCommand(t, root, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency cycle")
}

func TestRegistryListAfterMigrate(t *testing.T) {
	root := newProject(t)

	// A file-backed registry so state survives across invocations.
	require.NoError(t, os.WriteFile(filepath.Join(root, "sqlmorph.yaml"),
		[]byte("registry_path: reg.db\n"), 0o644))

	_, err := runCommand(t, root, "migrate")
	require.NoError(t, err)

	out, err := runCommand(t, root, "registry", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Registry (2 entries)")
	assert.Contains(t, out, "committed")
	assert.Contains(t, out, "stage.xml")
}
