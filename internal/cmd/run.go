package cmd

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
)

// defaultCommand runs when neither arguments nor testrail.command are set.
var defaultCommand = []string{"go", "test", "-json", "./..."}

var (
	runDryRun bool
	runConn   connection
)

var runCmd = &cobra.Command{
	Use:   "run [-- command...]",
	Short: "Run the tests and publish their results",
	Long: `Run a test command that writes "go test -json" output, echo that output,
and publish the results when the command exits.

The command is taken from the arguments after "--", then from
testrail.command in the configuration, and defaults to
"go test -json ./...". The exit status of the command is kept.

Examples:
  testrail-reporter run
  testrail-reporter run -- go test -json -run TestLogin ./e2e/...
  testrail-reporter run --update-run 5149`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "run the tests without calling TestRail")
	runCmd.Flags().AddFlagSet(runConn.flags())
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runConn.apply(cmd.Flags(), &cfg.TestRail)

	argv, err := testCommand(args, cfg.TestRail.Command)
	if err != nil {
		return err
	}
	log.WithField("command", shellquote.Join(argv...)).Debug("running tests")

	// The child's stderr is copied on its own goroutine while the stream is
	// echoed and logged here; out and err may be the same writer.
	var mu sync.Mutex
	stdoutW := &lockedWriter{mu: &mu, w: cmd.OutOrStdout()}
	stderrW := &lockedWriter{mu: &mu, w: cmd.ErrOrStderr()}
	prevLogOut := log.Out
	log.SetOutput(stderrW)
	defer log.SetOutput(prevLogOut)

	testCmd := exec.CommandContext(cmd.Context(), argv[0], argv[1:]...)
	testCmd.Stderr = stderrW

	stdout, err := testCmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := testCmd.Start(); err != nil {
		return fmt.Errorf("failed to start test command: %w", err)
	}

	rep, reportErr := report(cmd, &cfg.TestRail, stdout, stdoutW, runDryRun)
	if reportErr != nil {
		// Keep the pipe drained so the command can exit.
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := testCmd.Wait()

	if reportErr != nil {
		return reportErr
	}
	cmd.Println()
	printResults(cmd, rep, runDryRun)

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return NewExitError(exitErr.ExitCode(), "")
		}
		return fmt.Errorf("test command failed: %w", waitErr)
	}
	return nil
}

// testCommand picks the argv to run.
func testCommand(args []string, configured string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if configured == "" {
		return defaultCommand, nil
	}

	argv, err := shellquote.Split(configured)
	if err != nil {
		return nil, fmt.Errorf("invalid testrail.command %q: %w", configured, err)
	}
	if len(argv) == 0 {
		return defaultCommand, nil
	}
	return argv, nil
}

// lockedWriter serializes writes to w with writers sharing mu.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
