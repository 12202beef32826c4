package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/jobhub/internal/scheduler"
)

var sweepCmd = &cobra.Command{
	Use:       "sweep aggregation|expiry",
	Short:     "Run one scheduled job now",
	Long:      "Run the aggregation sweep (configured keywords x locations) or the expiry sweep once, outside the scheduler.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(scheduler.JobAggregation), string(scheduler.JobExpiry)},
	RunE:      runSweep,
}

type expiryReport struct {
	Deactivated int64 `json:"deactivated"`
}

func runSweep(cmd *cobra.Command, args []string) error {
	job, ok := scheduler.ParseJob(args[0])
	if !ok {
		return fmt.Errorf("unknown sweep %q, want %s or %s", args[0], scheduler.JobAggregation, scheduler.JobExpiry)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	switch job {
	case scheduler.JobExpiry:
		n, err := a.Orchestrator().RunExpirySweep(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), expiryReport{Deactivated: n})
	default:
		summaries, err := a.Orchestrator().RunAggregationSweep(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), summaries)
	}
}
