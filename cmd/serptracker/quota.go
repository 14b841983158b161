package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
)

var quotaJSON bool

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show today's search API quota usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		st := a.quota.Status(ctx, time.Now())
		if quotaJSON {
			data, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		}
		cmd.Printf("Date:      %s\n", st.Date)
		cmd.Printf("Used:      %d / %d\n", st.UsedToday, st.DailyLimit)
		cmd.Printf("Remaining: %d\n", st.Remaining)
		if st.Degraded {
			cmd.Println("Warning: quota store unreachable, usage reflects this process only")
		}
		return nil
	},
}

func init() {
	quotaCmd.Flags().BoolVar(&quotaJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(quotaCmd)
}
