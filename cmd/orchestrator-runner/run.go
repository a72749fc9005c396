package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"orchestrator-runner/internal/services"
)

func newRunCmd(a *app) *cobra.Command {
	sel := &selection{}
	var args string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a job for a process and wait for its output",
		Long: `Start a job for a process and wait until it succeeds or faults.

Without --args the entry point's default arguments are used. With --args the
arguments are checked against the entry point's input schema first. Prefix the
value with @ to read it from a file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := sel.processRef()
			if err != nil {
				return err
			}
			req := services.RunRequest{FolderID: sel.folderID, Process: ref}
			if sel.entryPoint != "" {
				ep, err := sel.entryPointRef()
				if err != nil {
					return err
				}
				req.EntryPoint = &ep
			}
			if args != "" {
				raw, err := readArguments(args)
				if err != nil {
					return err
				}
				req.InputArguments = raw
			}

			session, err := a.session(cmd)
			if err != nil {
				return err
			}
			out, err := session.Runner.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if len(out) == 0 {
				out = json.RawMessage("null")
			}
			return a.print(cmd.OutOrStdout(), out)
		},
	}
	addFolderFlag(cmd, sel)
	addProcessFlag(cmd, sel)
	cmd.Flags().StringVar(&sel.entryPoint, "entry-point", "", "entry point value printed by the entrypoints command")
	cmd.Flags().StringVar(&args, "args", "", "input arguments as a JSON object, or @file")
	return cmd
}

func readArguments(value string) (json.RawMessage, error) {
	if path, ok := strings.CutPrefix(value, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read arguments: %w", err)
		}
		return json.RawMessage(strings.TrimSpace(string(b))), nil
	}
	return json.RawMessage(value), nil
}
