package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/jobhub/internal/aggregator"
)

var providersJSON bool

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered providers and check their health",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

func init() {
	providersCmd.Flags().BoolVar(&providersJSON, "json", false, "print JSON instead of a table")
}

type providerStatus struct {
	aggregator.ProviderInfo
	Healthy bool `json:"healthy"`
}

func runProviders(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	health := a.Orchestrator().CheckProvidersHealth(ctx)
	infos := a.Orchestrator().Providers()

	out := make([]providerStatus, 0, len(infos))
	for _, info := range infos {
		out = append(out, providerStatus{ProviderInfo: info, Healthy: health[info.Name]})
	}

	if providersJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tENABLED\tHEALTHY\tCIRCUIT")
	for _, p := range out {
		circuit := "-"
		if p.Circuit != nil {
			circuit = p.Circuit.State.String()
		}
		fmt.Fprintf(tw, "%s\t%t\t%t\t%s\n", p.Name, !p.Disabled, p.Healthy, circuit)
	}
	return tw.Flush()
}
