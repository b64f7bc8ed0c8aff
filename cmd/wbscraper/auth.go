package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"wbscraper/pkg/session"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Weibo session",
	Long: `Manage the stored Weibo session cookie.

The session is stored using:
  - System keychain (when available)
  - A mode-0600 file in the config directory as fallback

Never share your cookie or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the Weibo session cookie",
	Long: `Store the Weibo session cookie for authenticated crawling.

To get the cookie:
1. Log into https://m.weibo.cn in your browser
2. Open Developer Tools (F12)
3. Go to Network, reload, and copy the Cookie request header`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

// showCmd represents the auth show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored session (masked)",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(showCmd)
	authCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	mgr, err := session.NewManager(configDir())
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Cookie: ")
	cookie, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read cookie: %w", err)
	}
	cookie = strings.TrimSpace(cookie)
	if cookie == "" {
		return fmt.Errorf("cookie cannot be empty")
	}

	fmt.Print("User-Agent (press Enter for default): ")
	userAgent, _ := reader.ReadString('\n')
	userAgent = strings.TrimSpace(userAgent)

	if err := mgr.Save(&session.Session{Cookie: cookie, UserAgent: userAgent}); err != nil {
		return err
	}

	fmt.Println("Session stored.")
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	mgr, err := session.NewManager(configDir())
	if err != nil {
		return err
	}

	sess, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("no session stored (run 'wbscraper auth login')")
	}

	fmt.Printf("Cookie:     %s\n", session.Sanitize(sess))
	if sess.UserAgent != "" {
		fmt.Printf("User-Agent: %s\n", sess.UserAgent)
	}
	fmt.Printf("Stored:     %s\n", sess.LastModified.Format("2006-01-02 15:04:05"))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	mgr, err := session.NewManager(configDir())
	if err != nil {
		return err
	}

	if err := mgr.Clear(); err != nil {
		return fmt.Errorf("no session stored")
	}

	fmt.Println("Session removed.")
	return nil
}

// configDir returns the wbscraper config directory, creating it on demand.
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "wbscraper")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wbscraper"
	}
	return filepath.Join(home, ".config", "wbscraper")
}
