package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/glidedeck/glidedeck/client"
	"github.com/glidedeck/glidedeck/receiver"
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Print the pairing payload of a running receiver",
	Long:  `Fetches the pairing payload from a running receiver's status endpoint.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("status-addr")
		save, _ := cmd.Flags().GetBool("save")

		httpClient := &http.Client{Timeout: 10 * time.Second}
		resp, err := httpClient.Get(fmt.Sprintf("http://%s/pairing", addr))
		if err != nil {
			return fmt.Errorf("failed to reach receiver: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("receiver returned error: %s", resp.Status)
		}

		var info receiver.PairingInfo
		if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
			return fmt.Errorf("failed to parse pairing payload: %w", err)
		}

		printJson(info)

		if save {
			if err := client.SaveToken(info.Token); err != nil {
				return err
			}
			fmt.Println("Pairing token saved to keyring")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pairCmd)

	pairCmd.Flags().String("status-addr", defaultStatusAddress, "Status endpoint address of the receiver")
	pairCmd.Flags().Bool("save", false, "Store the pairing token in the OS keyring")
}
