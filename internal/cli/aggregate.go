package cli

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/jobhub/internal/domain"
)

var (
	aggProvider string
	aggKeywords string
	aggLocation string
	aggLimit    int
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Run one aggregation and print its summary",
	Long: `Fetch listings matching the criteria and upsert them into the store.

Without --provider every registered provider is queried in turn. The JSON
summary is printed on stdout, logs go to stderr.

Examples:
  jobhub aggregate --keywords "golang" --location remote
  jobhub aggregate --provider remotive --keywords "data engineer" --limit 100`,
	Args: cobra.NoArgs,
	RunE: runAggregate,
}

func init() {
	aggregateCmd.Flags().StringVarP(&aggProvider, "provider", "p", "", "only aggregate from this provider")
	aggregateCmd.Flags().StringVarP(&aggKeywords, "keywords", "k", "", "search keywords")
	aggregateCmd.Flags().StringVarP(&aggLocation, "location", "l", "", "location filter")
	aggregateCmd.Flags().IntVarP(&aggLimit, "limit", "n", domain.DefaultSearchLimit, "max listings per provider")
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	criteria := domain.SearchCriteria{
		Keywords: aggKeywords,
		Location: aggLocation,
		Limit:    aggLimit,
	}

	if aggProvider != "" {
		res, err := a.Orchestrator().AggregateProvider(ctx, aggProvider, criteria)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}

	summary, err := a.Orchestrator().AggregateAll(ctx, criteria)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), summary)
}
