package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/foodcsp/internal/ir"
	"github.com/roach88/foodcsp/internal/render"
)

// ListResult is the JSON payload of the list command.
type ListResult struct {
	Constraints []ir.Record `json:"constraints"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the constraints in force",
		Long: `List default and custom constraints of the domain, numbered in store
order. Custom constraints listed in the domain file are included.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	session, _, err := openSession(cmd.Context(), opts, cmd)
	if err != nil {
		return formatter.Fail("open session", err)
	}
	defer session.Close()

	records := session.ListConstraints()
	return formatter.Render(ListResult{Constraints: records}, func(w io.Writer) error {
		return render.Listing(w, records)
	})
}
