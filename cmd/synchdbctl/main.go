// Package main is synchdbctl, the admin CLI of SPEC_FULL.md §4.11: a
// cobra.Command tree that submits requests into a running synchdb-worker
// process's control socket (internal/control) or reads its status.
// Mirrors the teacher's cmd/smf/main.go shape (one xCmd() constructor
// function per subcommand, flags bound with cmd.Flags().StringVar).
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"synchdb/internal/control"
)

type connectorFlags struct {
	connector string
	socketDir string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "synchdbctl",
		Short: "Control plane for synchdb-worker connectors",
	}

	rootCmd.AddCommand(pauseCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(setOffsetCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func bindConnectorFlags(cmd *cobra.Command, flags *connectorFlags) {
	cmd.Flags().StringVar(&flags.connector, "connector", "", "Connector name (required)")
	cmd.Flags().StringVar(&flags.socketDir, "socket-dir", "/tmp/synchdb", "Directory the target synchdb-worker's control socket lives under")
}

func socketPathFor(flags *connectorFlags) string {
	return filepath.Join(flags.socketDir, flags.connector+".sock")
}

func pauseCmd() *cobra.Command {
	flags := &connectorFlags{}
	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause a connector's event loop",
		RunE: func(_ *cobra.Command, _ []string) error {
			return submit(flags, control.Request{Command: control.CommandPause})
		},
	}
	bindConnectorFlags(cmd, flags)
	return cmd
}

func resumeCmd() *cobra.Command {
	flags := &connectorFlags{}
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused connector",
		RunE: func(_ *cobra.Command, _ []string) error {
			return submit(flags, control.Request{Command: control.CommandResume})
		},
	}
	bindConnectorFlags(cmd, flags)
	return cmd
}

func stopCmd() *cobra.Command {
	flags := &connectorFlags{}
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a connector permanently",
		RunE: func(_ *cobra.Command, _ []string) error {
			return submit(flags, control.Request{Command: control.CommandStop})
		},
	}
	bindConnectorFlags(cmd, flags)
	return cmd
}

func setOffsetCmd() *cobra.Command {
	flags := &connectorFlags{}
	var offset string
	cmd := &cobra.Command{
		Use:   "set-offset",
		Short: "Set a paused connector's resume offset",
		RunE: func(_ *cobra.Command, _ []string) error {
			if offset == "" {
				return fmt.Errorf("--offset is required")
			}
			return submit(flags, control.Request{Command: control.CommandSetOffset, Offset: offset})
		},
	}
	bindConnectorFlags(cmd, flags)
	cmd.Flags().StringVar(&offset, "offset", "", "New offset, in the upstream engine's own offset-token format (required)")
	return cmd
}

func statusCmd() *cobra.Command {
	flags := &connectorFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print a connector's current state, stage, and statistics",
		RunE: func(_ *cobra.Command, _ []string) error {
			return printStatus(flags)
		},
	}
	bindConnectorFlags(cmd, flags)
	return cmd
}

func submit(flags *connectorFlags, req control.Request) error {
	if flags.connector == "" {
		return fmt.Errorf("--connector is required")
	}
	req.Connector = flags.connector

	client := control.NewClient(socketPathFor(flags))
	if _, err := client.Do(req); err != nil {
		return err
	}
	fmt.Printf("%s: %s accepted\n", flags.connector, req.Command)
	return nil
}

func printStatus(flags *connectorFlags) error {
	if flags.connector == "" {
		return fmt.Errorf("--connector is required")
	}

	client := control.NewClient(socketPathFor(flags))
	resp, err := client.Do(control.Request{Command: control.CommandStatus, Connector: flags.connector})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp.Snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("synchdbctl: encode status: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
