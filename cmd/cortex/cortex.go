// Package cortexcmder is the root cortex command.
package cortexcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/cortex/cmd/cortex/config"
	indexescmder "github.com/papercomputeco/cortex/cmd/cortex/indexes"
	ingestcmder "github.com/papercomputeco/cortex/cmd/cortex/ingest"
	initcmder "github.com/papercomputeco/cortex/cmd/cortex/init"
	lodscmder "github.com/papercomputeco/cortex/cmd/cortex/lods"
	migratecmder "github.com/papercomputeco/cortex/cmd/cortex/migrate"
	nearestcmder "github.com/papercomputeco/cortex/cmd/cortex/nearest"
	pairscmder "github.com/papercomputeco/cortex/cmd/cortex/pairs"
	scanscmder "github.com/papercomputeco/cortex/cmd/cortex/scans"
	servecmder "github.com/papercomputeco/cortex/cmd/cortex/serve"
	versioncmder "github.com/papercomputeco/cortex/cmd/version"
)

const cortexLongDesc string = `Cortex stores brain-scan regions and their 3D surfaces and answers
spatial questions about them.

Load and query scans using:
  cortex ingest FILE...       Ingest scan records from the region extractor
  cortex scans                List ingested scans
  cortex lods SCAN            List the level-of-detail levels of a scan
  cortex pairs SCAN           Find intersecting or nearby regions
  cortex nearest X Y Z        Find region centroids nearest to a point
  cortex serve                Run the API server`

const cortexShortDesc string = "Cortex - brain region surface database"

func NewCortexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cortex",
		Short:         cortexShortDesc,
		Long:          cortexLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .cortex/ config directory")

	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(scanscmder.NewScansCmd())
	cmd.AddCommand(lodscmder.NewLODsCmd())
	cmd.AddCommand(pairscmder.NewPairsCmd())
	cmd.AddCommand(nearestcmder.NewNearestCmd())
	cmd.AddCommand(indexescmder.NewIndexesCmd())
	cmd.AddCommand(migratecmder.NewMigrateCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
