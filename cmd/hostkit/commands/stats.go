package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/hostkit/internal/bytesize"
	"github.com/marmos91/hostkit/internal/cli/output"
	"github.com/marmos91/hostkit/pkg/api/handlers"
	"github.com/marmos91/hostkit/pkg/apiclient"
)

var (
	statsAddr   string
	statsOutput string
)

var statsCmd = &cobra.Command{
	Use:   "stats [connector]",
	Short: "Show connector statistics of a running server",
	Long: `Show the statistics of the active HTTP connectors of a running hostkit
server. The server must run with metrics enabled so its management API is
reachable.

Examples:
  # Every connector as a table
  hostkit stats

  # One connector as JSON
  hostkit stats WEBAPP --output json

  # A remote server
  hostkit stats --addr 10.0.0.5:9100`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsAddr, "addr", "localhost:9100", "Management API address")
	statsCmd.Flags().StringVarP(&statsOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statsOutput)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	client := apiclient.New(statsAddr)

	var list connectorList
	if len(args) == 1 {
		c, err := client.Connector(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get connector %s: %w", args[0], err)
		}
		list = connectorList{*c}
	} else {
		list, err = client.Connectors(ctx)
		if err != nil {
			return fmt.Errorf("failed to list connectors: %w", err)
		}
	}

	if format == output.FormatTable && len(list) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No active connectors.")
		return nil
	}
	return output.Print(cmd.OutOrStdout(), format, list)
}

// connectorList renders connector statistics as a table.
type connectorList []handlers.ConnectorResponse

func (l connectorList) Headers() []string {
	return []string{"CONNECTOR", "ENDPOINT", "REQUESTS", "ACTIVE", "4XX", "5XX", "SENT", "MEAN", "MAX", "CONNS"}
}

func (l connectorList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, c := range l {
		rows = append(rows, []string{
			c.Name,
			c.Address + ":" + strconv.Itoa(c.Port),
			strconv.FormatUint(c.Requests, 10),
			strconv.FormatInt(c.ActiveRequests, 10),
			strconv.FormatUint(c.ClientErrors, 10),
			strconv.FormatUint(c.ServerErrors, 10),
			bytesize.ByteSize(c.BytesWritten).String(),
			fmt.Sprintf("%.2fms", c.MeanTimeMs),
			c.MaxTime.Round(time.Microsecond).String(),
			fmt.Sprintf("%d/%d", c.OpenConnections, c.TotalConnections),
		})
	}
	return rows
}
