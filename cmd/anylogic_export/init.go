package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrisschopp/anylogic-export/internal/config"
	"github.com/chrisschopp/anylogic-export/internal/scaffold"
)

type initFlags struct {
	repoDir     string
	experiments []string
	command     string
}

func newInitCmd() *cobra.Command {
	flags := &initFlags{}
	cmd := &cobra.Command{
		Use:   "init <model.alpx>",
		Short: "Add the ignore entries and pre-commit hook an exported model needs",
		Long: fmt.Sprintf(`Appends the generated files that must not be committed to %s and
adds (or replaces) the %q hook in %s so the export runs before each commit.`,
			scaffold.GitignoreFile, scaffold.HookID, scaffold.PreCommitFile),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.repoDir, "repo-dir", ".", "Repository root to write the files to")
	cmd.Flags().StringSliceVarP(&flags.experiments, "experiments", "e", []string{config.DefaultExperiment}, "Experiments the hook exports")
	cmd.Flags().StringVar(&flags.command, "command", scaffold.DefaultCommand, "Executable the hook runs")

	return cmd
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func runInit(cmd *cobra.Command, modelPath string, flags *initFlags) error {
	res, err := scaffold.Init(scaffold.Options{
		RepoDir:     flags.repoDir,
		ModelPath:   modelPath,
		Experiments: flags.experiments,
		Command:     flags.command,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(res.IgnoreAdded) > 0 {
		fmt.Fprintf(out, "Added to %s: %v\n", res.GitignorePath, res.IgnoreAdded)
	} else {
		fmt.Fprintf(out, "%s already up to date\n", res.GitignorePath)
	}
	verb := "Added"
	if res.HookReplaced {
		verb = "Replaced"
	}
	fmt.Fprintf(out, "%s hook %q in %s\n", verb, res.Hook.ID, res.PreCommitPath)
	fmt.Fprintf(out, "  entry: %s\n", res.Hook.Entry)
	return nil
}
