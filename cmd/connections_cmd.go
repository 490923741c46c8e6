package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/carelink/internal/config"
	"github.com/nextlevelbuilder/carelink/pkg/client"
	"github.com/nextlevelbuilder/carelink/pkg/token"
)

func connectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Manage caregiver-elderly connections",
	}

	cmd.AddCommand(connectionsRequestCmd())
	cmd.AddCommand(connectionsPendingCmd())
	cmd.AddCommand(connectionsApproveCmd())
	cmd.AddCommand(connectionsRejectCmd())
	cmd.AddCommand(connectionsListCmd())
	cmd.AddCommand(connectionsSeverCmd())

	return cmd
}

// newDirectory builds the REST client for the configured identity.
func newDirectory(cfg *config.Config) *client.Directory {
	if cfg.Client.UserID == "" {
		fmt.Println("Error: client.userId is not configured")
		os.Exit(1)
	}
	return client.NewDirectory(cfg.Client.ServerURL, cfg.Client.UserID, cfg.Client.Token)
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func connectionsRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "request <scanned-token>",
		Short: "Request a connection using a scanned pairing token",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			elderlyID, err := token.Decode(args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}

			dir := newDirectory(loadConfig())
			c, err := dir.CreateRequest(context.Background(), elderlyID)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Connection requested (id %s). Waiting for approval.\n", c.ID)
		},
	}
}

func connectionsPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List incoming connection requests awaiting approval",
		Run: func(cmd *cobra.Command, args []string) {
			dir := newDirectory(loadConfig())
			pending, err := dir.Pending(context.Background())
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			if len(pending) == 0 {
				fmt.Println("No pending requests.")
				return
			}
			printJSON(pending)
		},
	}
}

func connectionsApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <connection-id>",
		Short: "Approve a pending connection request",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dir := newDirectory(loadConfig())
			c, err := dir.Approve(context.Background(), args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Approved connection with caregiver %s\n", c.CaregiverID)
		},
	}
}

func connectionsRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <connection-id>",
		Short: "Reject a pending connection request",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dir := newDirectory(loadConfig())
			if _, err := dir.Reject(context.Background(), args[0]); err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Request rejected.")
		},
	}
}

func connectionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List connected counterparts for the configured role",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			dir := newDirectory(cfg)

			var (
				list []client.User
				err  error
			)
			if cfg.Client.Role == config.RoleCaregiver {
				list, err = dir.ElderlyList(context.Background())
			} else {
				list, err = dir.CaregiverList(context.Background())
			}
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			if len(list) == 0 {
				fmt.Println("No connections.")
				return
			}
			printJSON(list)
		},
	}
}

func connectionsSeverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sever <counterpart-id>",
		Short: "Remove an established connection",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			dir := newDirectory(cfg)

			caregiverID, elderlyID := cfg.Client.UserID, args[0]
			if cfg.Client.Role == config.RoleElderly {
				caregiverID, elderlyID = args[0], cfg.Client.UserID
			}

			removed, err := dir.Sever(context.Background(), caregiverID, elderlyID)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			if removed {
				fmt.Println("Connection removed.")
			} else {
				fmt.Println("No established connection to remove.")
			}
		},
	}
}
