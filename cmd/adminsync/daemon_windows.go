//go:build windows

package main

import (
	"errors"
	"io"
	"os"

	"github.com/playok/adminsync/internal/config"
)

var shutdownSignals = []os.Signal{os.Interrupt}

var errNoDaemon = errors.New("daemon mode is not supported on Windows. Use 'run' for foreground execution")

func startDaemon(io.Writer, *config.Config, []string) error { return errNoDaemon }
func stopDaemon(io.Writer, *config.Config) error           { return errNoDaemon }
func daemonStatus(io.Writer, *config.Config) error         { return errNoDaemon }
