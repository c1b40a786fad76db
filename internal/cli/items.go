package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/calcsync/internal/remote"
)

// ItemsResult lists the items of one container.
type ItemsResult struct {
	Container string           `json:"container"`
	Items     []remote.ItemRef `json:"items"`
}

// NewItemsCommand creates the items command.
func NewItemsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "items <container>",
		Short: "List the items saved in a container",
		Long: `List the items saved in a container, oldest first. Item IDs can be
passed to "calc --item" to continue a calculation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runItems(rootOpts, args[0], cmd)
		},
	}
}

func runItems(opts *RootOptions, containerID string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	logger := newLogger(opts, cmd.ErrOrStderr())

	svc, closeFn, err := openBackend(opts, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	refs, err := svc.ListItems(cmd.Context(), containerID)
	if err != nil {
		_ = formatter.Error("E_LIST", err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to list items", err)
	}

	result := ItemsResult{Container: containerID, Items: refs}
	if result.Items == nil {
		result.Items = []remote.ItemRef{}
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if len(refs) == 0 {
		fmt.Fprintf(formatter.Writer, "No items in container %s.\n", containerID)
		return nil
	}
	for _, ref := range refs {
		fmt.Fprintln(formatter.Writer, ref.ID)
	}
	return nil
}
