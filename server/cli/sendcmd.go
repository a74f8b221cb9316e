package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/metal-stack/clientdir/server"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send [request]",
	Short: "Send one raw request to a running server and print the reply",
	Long: `Send writes a single JSON request to a clientdir server and prints
whatever the server answers. Without an argument, or with "-", the
request is read from stdin.

A server closes the connection without a reply when the password or
key is wrong, which is reported on stderr.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		address, err := cmd.Flags().GetString("addr")
		if err != nil {
			fatalf("Error reading flag: %s", err)
		}
		timeout, err := cmd.Flags().GetDuration("timeout")
		if err != nil {
			fatalf("Error reading flag: %s", err)
		}

		req, err := readRequest(args, cmd.InOrStdin())
		if err != nil {
			fatalf("couldn't read the request: %s", err)
		}
		reply, err := server.Exchange(address, req, timeout)
		if err != nil {
			fatalf("request to %s failed: %s", address, err)
		}
		if len(reply) == 0 {
			fmt.Fprintln(os.Stderr, "no reply, the server closed the connection")
			os.Exit(2)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(reply))
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().String("addr", "127.0.0.1:4000", "address of the clientdir server")
	sendCmd.Flags().Duration("timeout", 5*time.Second, "deadline for the whole exchange")
}

func readRequest(args []string, stdin io.Reader) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		return []byte(args[0]), nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, server.MaxRequestSize+1))
	if err != nil {
		return nil, err
	}
	req := strings.TrimSpace(string(b))
	if req == "" {
		return nil, fmt.Errorf("empty request")
	}
	return []byte(req), nil
}
