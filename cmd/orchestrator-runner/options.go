package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"orchestrator-runner/internal/orchestrator"
	"orchestrator-runner/pkg/models"
)

// selection holds the pipeline flags shared by the option commands.
type selection struct {
	folderID   int64
	process    string
	entryPoint string
}

func (s *selection) processRef() (models.ProcessRef, error) {
	ref, err := models.ParseProcessRef(s.process)
	if err != nil {
		return models.ProcessRef{}, orchestrator.NewError("invalid --process", orchestrator.ErrInvalidReference, err)
	}
	return ref, nil
}

func (s *selection) entryPointRef() (models.EntryPointRef, error) {
	ref, err := models.ParseEntryPointRef(s.entryPoint)
	if err != nil {
		return models.EntryPointRef{}, orchestrator.NewError("invalid --entry-point", orchestrator.ErrInvalidReference, err)
	}
	return ref, nil
}

func addFolderFlag(cmd *cobra.Command, sel *selection) {
	cmd.Flags().Int64Var(&sel.folderID, "folder", 0, "folder id")
	_ = cmd.MarkFlagRequired("folder")
}

func addProcessFlag(cmd *cobra.Command, sel *selection) {
	cmd.Flags().StringVar(&sel.process, "process", "", "process value printed by the processes command")
	_ = cmd.MarkFlagRequired("process")
}

func newFoldersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.session(cmd)
			if err != nil {
				return err
			}
			folders, err := session.Options.ListFolders(cmd.Context())
			if err != nil {
				return err
			}
			options := make([]models.Option, 0, len(folders))
			for _, f := range folders {
				options = append(options, f.Option())
			}
			return a.printJSON(cmd, options)
		},
	}
}

func newProcessesCmd(a *app) *cobra.Command {
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   "processes",
		Short: "List the processes of a folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.session(cmd)
			if err != nil {
				return err
			}
			processes, err := session.Options.ListProcesses(cmd.Context(), sel.folderID)
			if err != nil {
				return err
			}
			options := make([]models.Option, 0, len(processes))
			for _, p := range processes {
				options = append(options, p.Option())
			}
			return a.printJSON(cmd, options)
		},
	}
	addFolderFlag(cmd, sel)
	return cmd
}

func newEntryPointsCmd(a *app) *cobra.Command {
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   "entrypoints",
		Short: "List the entry points of a process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := sel.processRef()
			if err != nil {
				return err
			}
			session, err := a.session(cmd)
			if err != nil {
				return err
			}
			eps, err := session.Options.ListEntryPoints(cmd.Context(), ref, sel.folderID)
			if err != nil {
				return err
			}
			options := make([]models.Option, 0, len(eps))
			for _, ep := range eps {
				options = append(options, ep.Option())
			}
			return a.printJSON(cmd, options)
		},
	}
	addFolderFlag(cmd, sel)
	addProcessFlag(cmd, sel)
	return cmd
}

func newArgumentsCmd(a *app) *cobra.Command {
	sel := &selection{}
	cmd := &cobra.Command{
		Use:   "arguments",
		Short: "Print the default input arguments of an entry point",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := sel.processRef()
			if err != nil {
				return err
			}
			ep, err := sel.entryPointRef()
			if err != nil {
				return err
			}
			session, err := a.session(cmd)
			if err != nil {
				return err
			}
			args, err := session.Options.ResolveDefaultArguments(cmd.Context(), ref, sel.folderID, ep)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), args)
		},
	}
	addFolderFlag(cmd, sel)
	addProcessFlag(cmd, sel)
	cmd.Flags().StringVar(&sel.entryPoint, "entry-point", "", "entry point value printed by the entrypoints command")
	_ = cmd.MarkFlagRequired("entry-point")
	return cmd
}

func newReleasesCmd(a *app) *cobra.Command {
	var filter models.ReleaseFilter
	cmd := &cobra.Command{
		Use:   "releases",
		Short: "List releases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := a.session(cmd)
			if err != nil {
				return err
			}
			releases, err := session.Options.ListReleases(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return a.printJSON(cmd, releases)
		},
	}
	cmd.Flags().Int64Var(&filter.FolderID, "folder", 0, "only releases of this folder")
	cmd.Flags().StringVar(&filter.ProcessKey, "process-key", "", "only releases of this process key")
	cmd.Flags().IntVar(&filter.Top, "top", orchestrator.DefaultReleaseTop, "maximum number of releases")
	return cmd
}

func (a *app) printJSON(cmd *cobra.Command, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return a.print(cmd.OutOrStdout(), b)
}
