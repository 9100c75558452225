package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/burritoOverflow/sdb/pkg/config"
	"github.com/burritoOverflow/sdb/pkg/target"
	"github.com/burritoOverflow/sdb/proc"
)

var log = logrus.WithField("layer", "cmd")

var logLevelFlag string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sdb",
		Short: "a native x86-64 Linux debugger core",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setUpLogging()
		},
	}
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level (panic,fatal,error,warn,info,debug,trace); overrides $SDB_LOG_LEVEL and the config file")
	root.AddCommand(newRunCmd(), newAttachCmd())
	return root
}

// setUpLogging resolves the log level from, in priority order, the
// --log-level flag, $SDB_LOG_LEVEL, the config file, then info, and
// installs logrus's text formatter the way the reference CLI's own
// startup path does.
func setUpLogging() error {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := cfg.ParsedLogLevel()

	if env := os.Getenv("SDB_LOG_LEVEL"); env != "" {
		if parsed, err := logrus.ParseLevel(env); err == nil {
			level = parsed
		} else {
			log.WithError(err).Warnf("unrecognized SDB_LOG_LEVEL %q", env)
		}
	}
	if logLevelFlag != "" {
		parsed, err := logrus.ParseLevel(logLevelFlag)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevelFlag, err)
		}
		level = parsed
	}

	logrus.SetLevel(level)
	return nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <path> [args...]",
		Short: "launch and trace a new inferior",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tgt, err := target.Launch(args[0], args[1:], -1)
			if err != nil {
				return err
			}
			defer tgt.Close()
			return runStopLoop(tgt)
		},
	}
}

func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <pid>",
		Short: "attach to an already-running process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid pid %q: %w", args[0], err)
			}
			tgt, err := target.Attach(pid)
			if err != nil {
				return err
			}
			defer tgt.Close()
			return runStopLoop(tgt)
		},
	}
}

// runStopLoop resumes the inferior and prints every StopReason it
// reports until it exits or is terminated. It is the thin host loop
// the CLI owns; the interactive shell that would sit in front of it
// (line editing, disassembly, a syscall-name table) is an external
// collaborator out of scope here.
func runStopLoop(tgt *target.Target) error {
	p := tgt.Process()
	for {
		if _, err := p.Resume(); err != nil {
			return err
		}
		reason, err := p.WaitOnSignal()
		if err != nil {
			return err
		}
		printStopReason(tgt, reason)
		if reason.State == proc.ProcessExited || reason.State == proc.ProcessTerminated {
			return nil
		}
	}
}

func printStopReason(tgt *target.Target, reason *proc.StopReason) {
	pid := tgt.Process().Pid()
	switch reason.State {
	case proc.ProcessExited:
		fmt.Printf("process %d exited with status %d\n", pid, reason.Info)
	case proc.ProcessTerminated:
		fmt.Printf("process %d terminated by signal %d\n", pid, reason.Info)
	case proc.ProcessStopped:
		fmt.Printf("process %d stopped by signal %d (trap=%v)\n", pid, reason.Info, reason.TrapType)
		if fn, ok, err := tgt.FunctionContainingAddress(tgt.Process().GetPc()); err == nil && ok {
			if name, hasName, _ := fn.Name(); hasName {
				fmt.Printf("  in function %s\n", name)
			}
		}
	}
}
