package remove

import (
	"context"
	"geohost/internal/app"
	"geohost/internal/cmdutil"
	"geohost/internal/config"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"time"
)

func NewRemoveInstanceCmd(cfg config.Config) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete [instance id]",
		Short: "Request the deletion of an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := uuid.Parse(cmd.Flag("as").Value.String())
			if err != nil {
				return err
			}
			instanceID, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}

			if !yes && !cmdutil.Confirm("Are you sure you want to take down this instance?") {
				cmdutil.Print("aborted")
				return nil
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = a.Close()
			}()

			cmdutil.StartLoading("Working...")
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			activity, err := a.Manager.DeleteInstance(ctx, actorID, instanceID)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return nil
			}
			cmdutil.PrintS("deletion requested, activity " + activity.ID.String())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
