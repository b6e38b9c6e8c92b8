package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cppla/myblog/client"
)

var (
	serverURL string
	pageSize  int
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:           "blogctl [command] [flags]",
	Short:         "blogctl: read and write a myblog server from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("BLOG_SERVER", "http://localhost:8080"), "blog server base URL")
	RootCmd.PersistentFlags().IntVar(&pageSize, "page-size", 0, "records per page (server default when 0)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		outputErrorAndExit("%v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func outputErrorAndExit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// newClient builds an API client carrying the saved token for the server, if any.
func newClient() *client.Client {
	opts := []client.Option{}
	if tok := os.Getenv("BLOG_TOKEN"); tok != "" {
		opts = append(opts, client.WithToken(tok))
	} else if s, err := loadSession(); err == nil && s.Server == serverURL {
		opts = append(opts, client.WithToken(s.Token))
	}
	return client.New(serverURL, opts...)
}

func mustAuth(c *client.Client) {
	if c.Token() == "" {
		outputErrorAndExit("not logged in; run `blogctl login` first")
	}
}
