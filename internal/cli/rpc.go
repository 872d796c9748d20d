package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goCustodyd/internal/server"
)

var rpcURL string

// rpcCmd represents the rpc command group. The store belongs to the daemon,
// so these commands talk to a running instance over HTTP rather than opening
// the database themselves.
var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "RPC client commands",
	Long:  `Send JSON-RPC requests to a running custodyd instance.`,
}

func init() {
	rootCmd.AddCommand(rpcCmd)

	rpcCmd.PersistentFlags().StringVar(&rpcURL, "url", "",
		"endpoint URL (default derived from server.addr in the configuration)")
}

// resolveRPCURL picks the endpoint: the --url flag when given, otherwise the
// configured listen address with unbound hosts mapped to loopback.
func resolveRPCURL() (string, error) {
	if rpcURL != "" {
		return rpcURL, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}

	host, port, err := net.SplitHostPort(cfg.Server.Addr)
	if err != nil {
		return "", fmt.Errorf("invalid server.addr %q: %w", cfg.Server.Addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return "http://" + net.JoinHostPort(host, port) + "/rpc", nil
}

// executeMethod posts one request to the daemon and pretty-prints the result.
func executeMethod(method string, params interface{}) error {
	url, err := resolveRPCURL()
	if err != nil {
		return err
	}

	req := server.Request{JsonRpc: "2.0", Method: method, ID: 1}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal parameters: %w", err)
		}
		req.Params = data
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cannot reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	var rpcResp server.Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("invalid response from %s: %w", url, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("RPC error [%d]: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if len(rpcResp.Result) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, rpcResp.Result, "", "  "); err != nil {
			fmt.Println(string(rpcResp.Result))
			return nil
		}
		fmt.Println(pretty.String())
	}

	return nil
}

// =============================================================================
// ACCOUNT COMMANDS
// =============================================================================

var signUpCmd = &cobra.Command{
	Use:   "sign_up <username> <password>",
	Short: "Create an account with a deposit wallet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeMethod(server.MethodSignUp, map[string]interface{}{
			"username": args[0],
			"password": args[1],
		})
	},
}

var logInCmd = &cobra.Command{
	Use:   "log_in <username> <password>",
	Short: "Verify credentials and show the account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeMethod(server.MethodLogIn, map[string]interface{}{
			"username": args[0],
			"password": args[1],
		})
	},
}

var accountInfoCmd = &cobra.Command{
	Use:   "account_info <account>",
	Short: "Get an account and its settled balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeMethod(server.MethodAccountInfo, map[string]interface{}{
			"account": args[0],
		})
	},
}

var accountTxCmd = &cobra.Command{
	Use:   "account_tx <account>",
	Short: "List an account's ledger transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeMethod(server.MethodAccountTx, map[string]interface{}{
			"account": args[0],
		})
	},
}

// =============================================================================
// TRANSACTION COMMANDS
// =============================================================================

var submitDepositCmd = &cobra.Command{
	Use:   "submit_deposit <id> <sender> <height> <amount>",
	Short: "Feed one observed blockchain transaction to the daemon",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		height, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid height %q: %w", args[2], err)
		}

		return executeMethod(server.MethodSubmitDeposit, map[string]interface{}{
			"id":       args[0],
			"senderId": args[1],
			"height":   height,
			"amount":   args[3],
		})
	},
}

var appendTransactionCmd = &cobra.Command{
	Use:   "append_transaction <account> <type> <amount>",
	Short: "Append a credit, debit or withdrawal transaction",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeMethod(server.MethodAppendTransaction, map[string]interface{}{
			"account": args[0],
			"type":    args[1],
			"amount":  args[2],
		})
	},
}

// =============================================================================
// SERVER COMMANDS
// =============================================================================

var serverInfoCmd = &cobra.Command{
	Use:   "server_info",
	Short: "Get daemon identity, health and shard assignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeMethod(server.MethodServerInfo, nil)
	},
}

// =============================================================================
// ADMIN COMMANDS
// =============================================================================

var settleTransactionCmd = &cobra.Command{
	Use:   "settle_transaction <transaction>",
	Short: "Mark one transaction settled (requires server.admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeMethod(server.MethodSettleTransaction, map[string]interface{}{
			"transaction": args[0],
		})
	},
}

// Generic JSON command for any method
var jsonCmd = &cobra.Command{
	Use:   "json <method> [json_params]",
	Short: "Execute any RPC method with JSON parameters",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var params interface{}
		if len(args) > 1 {
			if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
				return fmt.Errorf("invalid JSON parameters: %w", err)
			}
		}

		return executeMethod(args[0], params)
	},
}

func init() {
	rpcCmd.AddCommand(
		// Account commands
		signUpCmd,
		logInCmd,
		accountInfoCmd,
		accountTxCmd,

		// Transaction commands
		submitDepositCmd,
		appendTransactionCmd,

		// Server commands
		serverInfoCmd,

		// Admin commands
		settleTransactionCmd,

		// Generic JSON command
		jsonCmd,
	)
}
