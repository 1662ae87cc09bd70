package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/LibrePCB/librepcb-api-server/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show request accounting for a time window",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		since, _ := cmd.Flags().GetDuration("since")

		s, err := initStore(cmd.Context(), cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		st, err := s.PartsRequestStats(cmd.Context(), time.Now().Add(-since))
		if err != nil {
			return err
		}
		printStats(cmd.OutOrStdout(), since, st)
		return nil
	},
}

func init() {
	statsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 168h)")
	rootCmd.AddCommand(statsCmd)
}

func printStats(w io.Writer, since time.Duration, st *store.RequestStats) {
	fmt.Fprintf(w, "Requests in the last %s: %d\n", since, st.Requests)
	fmt.Fprintf(w, "  Parts queried:   %d\n", st.Parts)
	fmt.Fprintf(w, "  Cache hits:      %d (%s)\n", st.CacheHits, percent(st.CacheHits, st.Parts))
	fmt.Fprintf(w, "  With result:     %d (%s)\n", st.WithResult, percent(st.WithResult, st.Parts))
}

func percent(n, total int64) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
}
