//go:build !windows

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/playok/adminsync/internal/config"
)

var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func startDaemon(w io.Writer, cfg *config.Config, childArgs []string) error {
	if pid, err := readPidFile(cfg.PidFile); err == nil {
		if processExists(pid) {
			return fmt.Errorf("adminsync is already running (PID %d)", pid)
		}
		// Stale PID file
		os.Remove(cfg.PidFile)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to find executable: %w", err)
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
	}
	defer logFile.Close()

	child := &exec.Cmd{
		Path:   exe,
		Args:   append([]string{filepath.Base(exe)}, childArgs...),
		Stdout: logFile,
		Stderr: logFile,
		SysProcAttr: &syscall.SysProcAttr{
			Setsid: true, // detach from terminal
		},
	}
	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	pid := child.Process.Pid
	if err := writePidFile(cfg.PidFile, pid); err != nil {
		fmt.Fprintf(w, "warning: failed to write PID file: %v\n", err)
	}
	child.Process.Release()

	fmt.Fprintf(w, "adminsync started (PID %d)\n", pid)
	printSummary(w, cfg)
	return nil
}

func stopDaemon(w io.Writer, cfg *config.Config) error {
	pid, err := readPidFile(cfg.PidFile)
	if err != nil {
		return fmt.Errorf("adminsync is not running (no PID file: %s)", cfg.PidFile)
	}

	if !processExists(pid) {
		os.Remove(cfg.PidFile)
		return fmt.Errorf("adminsync is not running (stale PID %d)", pid)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop PID %d: %w", pid, err)
	}

	// Wait up to 10 seconds.
	for i := 0; i < 100; i++ {
		time.Sleep(100 * time.Millisecond)
		if !processExists(pid) {
			os.Remove(cfg.PidFile)
			fmt.Fprintf(w, "adminsync stopped (PID %d)\n", pid)
			return nil
		}
	}

	fmt.Fprintf(w, "adminsync stop signal sent (PID %d), waiting for exit...\n", pid)
	os.Remove(cfg.PidFile)
	return nil
}

func daemonStatus(w io.Writer, cfg *config.Config) error {
	pid, err := readPidFile(cfg.PidFile)
	if err != nil {
		return errors.New("adminsync is stopped")
	}

	if !processExists(pid) {
		os.Remove(cfg.PidFile)
		return fmt.Errorf("adminsync is stopped (stale PID file, was PID %d)", pid)
	}
	fmt.Fprintf(w, "adminsync is running (PID %d)\n", pid)
	printSummary(w, cfg)
	return nil
}

func processExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks existence without actually sending a signal
	return proc.Signal(syscall.Signal(0)) == nil
}
