package list

import (
	"context"
	"geohost/internal/app"
	"geohost/internal/cmdutil"
	"geohost/internal/config"
	"geohost/internal/manager"
	"geohost/internal/types"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"time"
)

func NewListInstancesCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List instances",
		Long:  "List the instances visible to the acting user. Admins see every instance.",
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID, err := uuid.Parse(cmd.Flag("as").Value.String())
			if err != nil {
				return err
			}

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = a.Close()
			}()

			cmdutil.StartLoading("Working...")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			out, err := Render(ctx, a.Manager, actorID)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return nil
			}
			cmdutil.Print("")
			cmdutil.Print(out)
			return nil
		},
	}
}

// Render lists the instances of actorID as a table.
func Render(ctx context.Context, mn manager.Manager, actorID uuid.UUID) (string, error) {
	instances, err := mn.ListInstances(ctx, actorID)
	if err != nil {
		return "", err
	}

	header := table.Row{"ID", "Name", "Status", "URL", "Package", "Owner", "Time Created"}
	tw := table.NewWriter()
	tw.AppendHeader(header)
	for _, next := range instances {
		tw.AppendRow(row(next))
		tw.AppendSeparator()
	}
	return tw.Render(), nil
}

func row(i *types.Instance) table.Row {
	return table.Row{
		i.ID.String(),
		i.Name,
		cmdutil.ColorStatus(i.Status),
		i.URL(),
		i.Package.PackageCode,
		i.Owner.Email,
		i.CreatedAt.Format("02-01-2006"),
	}
}
