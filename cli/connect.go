package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/glidedeck/glidedeck/client"
	"github.com/glidedeck/glidedeck/utils"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to a receiver as a client",
	Long: `Connects to a receiver and stays online until interrupted, printing
connection state, clipboard pushes and macro listings. Useful for
verifying a receiver from another machine without a phone.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pairingJSON, _ := cmd.Flags().GetString("pairing")
		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")
		token, _ := cmd.Flags().GetString("token")
		settingsPath, _ := cmd.Flags().GetString("settings")
		text, _ := cmd.Flags().GetString("text")
		clipboard, _ := cmd.Flags().GetString("clipboard")

		settings, err := client.LoadSettings(settingsPath)
		if err != nil {
			utils.Warn("%v, using defaults", err)
		}

		if pairingJSON != "" {
			pairing, err := client.ParsePairing([]byte(pairingJSON))
			if err != nil {
				return err
			}
			host, port, token = pairing.IP, pairing.Port, pairing.Token
		}
		if host == "" {
			host = settings.LastHost
			port = settings.LastPort
		}
		if token == "" {
			token, _ = client.LoadToken()
		}
		if host == "" || token == "" {
			return fmt.Errorf("no pairing information: pass --pairing, or --host and --token")
		}

		label, err := os.Hostname()
		if err != nil {
			label = "glidedeck-cli"
		}

		c := client.New(label)
		events := c.Subscribe()
		defer c.Unsubscribe(events)

		go func() {
			for ev := range events {
				switch ev.Kind {
				case client.EventStateChanged:
					utils.Info("connection state: %s", ev.State)
				case client.EventClipboard:
					utils.Info("clipboard from receiver: %q", ev.Text)
				case client.EventMacros:
					for _, m := range ev.Macros {
						utils.Info("macro: %s (%s)", m.Name, m.ID)
					}
				}
			}
		}()

		if err := c.Connect(host, port, token); err != nil {
			return err
		}
		c.EnableAutoReconnect(true)

		settings.LastHost = host
		settings.LastPort = port
		if err := settings.Save(settingsPath); err != nil {
			utils.Warn("%v", err)
		}
		if err := client.SaveToken(token); err != nil {
			utils.Verbose("%v", err)
		}

		c.RequestMacros()

		// one-shot sends: deliver and exit instead of staying online
		if text != "" || clipboard != "" {
			if text != "" {
				c.SendText(text)
			}
			if clipboard != "" {
				c.SendClipboard(clipboard)
			}
			time.Sleep(500 * time.Millisecond)
			c.Disconnect()
			return nil
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		c.Disconnect()
		return nil
	},
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "glidedeck", "settings.ini")
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().String("pairing", "", "Pairing payload JSON as printed by the receiver")
	connectCmd.Flags().String("host", "", "Receiver address")
	connectCmd.Flags().Int("port", 0, "Receiver port")
	connectCmd.Flags().String("token", "", "Pairing token (default: OS keyring)")
	connectCmd.Flags().String("settings", defaultSettingsPath(), "Path to the settings file")
	connectCmd.Flags().String("text", "", "Send this text to be typed on the receiver, then exit")
	connectCmd.Flags().String("clipboard", "", "Push this text to the receiver clipboard, then exit")
}
