package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "rdv", cmd.Use)

	local := cmd.PersistentFlags().Lookup("local")
	require.NotNil(t, local)
	assert.Equal(t, "false", local.DefValue)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "list", "export", "import", "sync", "stats", "cleanup"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestExportCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	exportCmd, _, err := cmd.Find([]string{"export"})
	require.NoError(t, err)

	out := exportCmd.Flags().Lookup("output")
	require.NotNil(t, out)
	assert.Equal(t, "o", out.Shorthand)
	assert.NotNil(t, exportCmd.Flags().Lookup("upload"))
}

// localEnv points every command at a throwaway sqlite file.
func localEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ENV", "test")
	t.Setenv("LOCAL_STORE", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "rdv.db"))
	t.Setenv("LOCAL_ONLY", "true")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImportListExport(t *testing.T) {
	dir := localEnv(t)
	doc := `{"data":{"rdv_1":{"id":"rdv_1","date":"2024-05-02","time":"10:00","clientName":"Martin","status":"prevu","paymentStatus":"unpaid","syncPending":true}},"totalRecords":1}`
	file := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(file, []byte(doc), 0o600))

	out, err := run(t, "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "1 appointment(s) imported")

	out, err = run(t, "list", "--date", "2024-05-02")
	require.NoError(t, err)
	assert.Contains(t, out, "Martin")
	assert.Contains(t, out, "from local")

	exported := filepath.Join(dir, "out.json")
	_, err = run(t, "export", "-o", exported)
	require.NoError(t, err)
	raw, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"totalRecords": 1`)

	out, err = run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, `"pendingSync": 1`)
}

func TestImport_Malformed(t *testing.T) {
	dir := localEnv(t)
	file := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(file, []byte("not json"), 0o600))

	_, err := run(t, "import", file)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid import"))
}

func TestSync_LockedIsUnavailable(t *testing.T) {
	localEnv(t)
	_, err := run(t, "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "synchronization unavailable")
}

func TestCleanup(t *testing.T) {
	localEnv(t)
	out, err := run(t, "cleanup", "--days", "30")
	require.NoError(t, err)
	assert.Contains(t, out, "0 completed appointment(s) removed")
}
