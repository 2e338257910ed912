package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/glidedeck/glidedeck/daemon"
	"github.com/glidedeck/glidedeck/input"
	"github.com/glidedeck/glidedeck/receiver"
	"github.com/glidedeck/glidedeck/utils"
)

const defaultStatusAddress = "localhost:50001"

var receiverCmd = &cobra.Command{
	Use:   "receiver",
	Short: "Receiver management commands",
	Long:  `Commands for running and stopping the desktop receiver.`,
}

var receiverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the receiver",
	Long:  `Starts the receiver and prints the pairing payload for the phone to scan.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get* cannot fail for defined flags
		bindIP, _ := cmd.Flags().GetString("listen")
		port, _ := cmd.Flags().GetInt("port")
		statusAddr, _ := cmd.Flags().GetString("status-addr")
		macrosPath, _ := cmd.Flags().GetString("macros")
		isDaemon, _ := cmd.Flags().GetBool("daemon")

		if isDaemon && !daemon.IsChild() {
			_, err := daemon.Daemonize()
			if err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}
			fmt.Printf("Receiver daemon spawned, listening on port %d\n", port)
			return nil
		}

		cfg := receiver.DefaultConfig()
		cfg.BindIP = bindIP
		cfg.Port = port
		cfg.MacrosPath = macrosPath
		return runReceiver(cfg, statusAddr)
	},
}

var receiverKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop a running receiver",
	Long:  `Connects to the receiver's status endpoint and requests shutdown.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("status-addr")

		if err := daemon.KillReceiver(addr); err != nil {
			return err
		}
		fmt.Println("Receiver shutdown command sent successfully")
		return nil
	},
}

// runReceiver runs the host and its status sidecar until a signal
// arrives or someone posts to the shutdown endpoint.
func runReceiver(cfg receiver.Config, statusAddr string) error {
	host, err := receiver.Start(cfg, input.LogInjector{})
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	var stopOnce sync.Once
	requestStop := func() { stopOnce.Do(func() { close(stop) }) }

	status, err := receiver.StartStatus(statusAddr, host, requestStop)
	if err != nil {
		host.Stop()
		return err
	}

	if pairing, err := host.PairingJSON(); err == nil {
		fmt.Println(pairing)
	} else {
		utils.Warn("could not determine pairing address: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = status.Stop(ctx)
	host.Stop()
	return nil
}

func init() {
	rootCmd.AddCommand(receiverCmd)

	receiverCmd.AddCommand(receiverStartCmd)
	receiverCmd.AddCommand(receiverKillCmd)

	receiverStartCmd.Flags().String("listen", "", "IP address to bind (default: all interfaces)")
	receiverStartCmd.Flags().Int("port", receiver.DefaultConfig().Port, "TCP and UDP port to listen on")
	receiverStartCmd.Flags().String("status-addr", defaultStatusAddress, "Status endpoint address")
	receiverStartCmd.Flags().String("macros", "", "Path to the macro database (empty disables macros)")
	receiverStartCmd.Flags().BoolP("daemon", "d", false, "Run receiver in daemon mode (background)")

	receiverKillCmd.Flags().String("status-addr", defaultStatusAddress, "Status endpoint address of the receiver to stop")
}
