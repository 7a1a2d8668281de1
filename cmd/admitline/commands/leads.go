package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/admitline/admitline/pkg/call"
	"github.com/admitline/admitline/pkg/cli"
	"github.com/admitline/admitline/pkg/kv"
)

// output renders v in the selected format.
func output(v any) error {
	return cli.Output(nil, v, outputFormat())
}

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List captured callback leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, err := currentContext()
		if err != nil {
			return err
		}
		dataDir := ctx.DataDir
		if dataDir == "" {
			dataDir = filepath.Join(filepath.Dir(globalConfig.Path()), "data")
		}
		store, err := kv.NewBadger(kv.BadgerOptions{Dir: dataDir})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()

		leads, err := call.NewStore(store).Leads(cmd.Context())
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			fmt.Println(cli.Dim("no leads captured"))
			return nil
		}
		return output(map[string]any{"leads": leads})
	},
}
