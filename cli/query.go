package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"kotobadb.dev/kotobadb/session"
)

var (
	queryDatabase string
	queryExplain  bool
)

var queryCmd = &cobra.Command{
	Use:   "query <gql>",
	Short: "run a GQL program against the local store",
	Long: `Run a GQL program against the locally-configured storage backends
and print the result rows. Runs as the trusted operator: the policy
layer is not consulted for local one-shot queries.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryDatabase, "database", "default", "target database")
	queryCmd.Flags().BoolVar(&queryExplain, "explain", false, "print the physical plan instead of executing")
}

func runQuery(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	stack, err := assemble(c, false)
	if err != nil {
		return err
	}
	defer stack.Tier.Close()

	qc := session.New(queryDatabase).WithTimeout(c.Query.DefaultTimeout)

	if queryExplain {
		plan, err := stack.Engine.Explain(cmd.Context(), qc, args[0])
		if err != nil {
			return err
		}
		fmt.Print(plan)
		return nil
	}

	outcomes, err := stack.Engine.Execute(cmd.Context(), qc, args[0])
	if err != nil {
		return err
	}

	for _, outcome := range outcomes {
		if outcome.Statement != nil {
			fmt.Printf("rows affected: %d", outcome.Statement.RowsAffected)
			if len(outcome.Statement.CreatedIDs) > 0 {
				fmt.Printf(", created: %s", strings.Join(outcome.Statement.CreatedIDs, ", "))
			}
			fmt.Println()
			for _, rowErr := range outcome.Statement.RowErrors {
				fmt.Println("row error:", rowErr)
			}
			continue
		}
		if outcome.Result == nil {
			continue
		}
		columns := outcome.Result.Columns
		if len(columns) == 0 && len(outcome.Result.Rows) > 0 {
			for col := range outcome.Result.Rows[0] {
				columns = append(columns, col)
			}
			sort.Strings(columns)
		}
		fmt.Println(strings.Join(columns, "\t"))
		for _, row := range outcome.Result.Rows {
			cells := make([]string, len(columns))
			for i, col := range columns {
				cells[i] = fmt.Sprint(row[col])
			}
			fmt.Println(strings.Join(cells, "\t"))
		}
	}
	return nil
}
