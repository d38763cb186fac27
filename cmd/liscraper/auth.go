package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"liscraper/pkg/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage LinkedIn session credentials",
	Long: `Manage stored LinkedIn session credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only)

Never share your session cookie or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store a LinkedIn session cookie securely",
	Long: `Store a LinkedIn session cookie in the system keychain or encrypted file.

You will be prompted for:
  - Account name (if not provided)
  - li_at session cookie
  - User agent (optional, press Enter for default)

To get the cookie value:
1. Log into LinkedIn in your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies > https://www.linkedin.com
4. Copy the li_at value`,
	Example: `  # Interactive login
  liscraper auth login

  # Login with an account name
  liscraper auth login work`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <account>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	Run:   runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored LinkedIn accounts with the session cookie masked.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) == 1 {
		username = args[0]
	} else {
		fmt.Print("Account name: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to read account name:", err)
			os.Exit(1)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		fmt.Fprintln(os.Stderr, "account name is required")
		os.Exit(1)
	}

	fmt.Print("li_at session cookie (input hidden): ")
	cookie, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read cookie:", err)
		os.Exit(1)
	}
	liAt := strings.TrimSpace(string(cookie))
	if liAt == "" {
		fmt.Fprintln(os.Stderr, "session cookie is required")
		os.Exit(1)
	}

	fmt.Print("User agent (optional): ")
	ua, _ := reader.ReadString('\n')

	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open credential store:", err)
		os.Exit(1)
	}
	account := &auth.Account{
		Username:  username,
		LiAt:      liAt,
		UserAgent: strings.TrimSpace(ua),
	}
	if err := manager.Store(account); err != nil {
		fmt.Fprintln(os.Stderr, "failed to store credentials:", err)
		os.Exit(1)
	}
	fmt.Printf("Credentials stored for account %q\n", username)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open credential store:", err)
		os.Exit(1)
	}
	if err := manager.Delete(args[0]); err != nil {
		fmt.Fprintln(os.Stderr, "failed to remove credentials:", err)
		os.Exit(1)
	}
	fmt.Printf("Credentials removed for account %q\n", args[0])
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open credential store:", err)
		os.Exit(1)
	}
	accounts, err := manager.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to list accounts:", err)
		os.Exit(1)
	}
	if len(accounts) == 0 {
		fmt.Println("No stored accounts. Use 'liscraper auth login' to add one.")
		return
	}
	for _, account := range accounts {
		masked := auth.SanitizeAccount(account)
		fmt.Printf("%s\tli_at=%s\tmodified=%s\n",
			masked.Username, masked.LiAt, masked.LastModified.Format("2006-01-02 15:04"))
	}
}
