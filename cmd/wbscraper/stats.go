package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"wbscraper/pkg/config"
	"wbscraper/pkg/store"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the persisted corpus",
	Long:  `Show row counts for the local database: accounts, posts, pending posts and comments.`,
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Database: %s\n\n", cfg.DatabasePath())
	fmt.Printf("  Accounts:      %d\n", stats.Accounts)
	fmt.Printf("  Posts:         %d\n", stats.Posts)
	fmt.Printf("  Pending posts: %d\n", stats.PendingPosts)
	fmt.Printf("  Comments:      %d\n", stats.Comments)

	if len(stats.PostsByAccount) > 0 {
		fmt.Println("\nPosts by account:")
		uids := make([]string, 0, len(stats.PostsByAccount))
		for uid := range stats.PostsByAccount {
			uids = append(uids, uid)
		}
		sort.Strings(uids)
		for _, uid := range uids {
			fmt.Printf("  %s: %d\n", uid, stats.PostsByAccount[uid])
		}
	}

	return nil
}
