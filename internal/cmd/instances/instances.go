package instances

import (
	"geohost/internal/cmd/instances/list"
	"geohost/internal/cmd/instances/remove"
	"geohost/internal/config"
	"github.com/spf13/cobra"
)

func NewInstancesCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "Inspect and manage instances",
	}

	cmd.PersistentFlags().String("as", "", "id of the user to act as")
	_ = cmd.MarkPersistentFlagRequired("as")
	cmd.AddCommand(list.NewListInstancesCmd(cfg))
	cmd.AddCommand(remove.NewRemoveInstanceCmd(cfg))
	return cmd
}
