package cli

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/membership/internal/ids"
	"github.com/roach88/membership/internal/logger"
	"github.com/roach88/membership/internal/testutil"
)

// cliEnv runs commands against one database with a fixed clock and a
// shared ID sequence.
type cliEnv struct {
	t       *testing.T
	db      string
	seedDir string
	ids     ids.Generator
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	for _, k := range []string{
		"MEMBERSHIP_DB_PATH", "MEMBERSHIP_SEED_DIR", "MEMBERSHIP_FORCE_MEMORY",
		"MEMBERSHIP_SEED_ALLOWLIST", "ALLOWLIST_WALLETS", "ALLOWLIST_EMAILS",
	} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	return &cliEnv{
		t:       t,
		db:      filepath.Join(dir, "data", "membership.db"),
		seedDir: t.TempDir(),
		ids:     testutil.NewSequentialGenerator("id"),
	}
}

func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	opts := &RootOptions{
		now:    func() time.Time { return testutil.Epoch },
		ids:    e.ids,
		logger: logger.Nop(),
	}
	buf := &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--db", e.db, "--seed-dir", e.seedDir}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "memberctl", cmd.Use)
	assert.Contains(t, cmd.Long, "leaderboard")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"init", "leaderboard", "unlock", "event", "entitlement"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "db", "seed-dir", "memory"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestInvalidFormat(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("leaderboard", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMissingConfigFile(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("leaderboard", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
