package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/carelink/pkg/token"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create and decode pairing tokens",
	}

	cmd.AddCommand(tokenShowCmd())
	cmd.AddCommand(tokenDecodeCmd())

	return cmd
}

func tokenShowCmd() *cobra.Command {
	var (
		userID string
		out    string
		size   int
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print this user's pairing token, optionally as a QR code PNG",
		Run: func(cmd *cobra.Command, args []string) {
			if userID == "" {
				userID = loadConfig().Client.UserID
			}
			payload, err := token.Encode(userID)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}

			fmt.Println(payload)

			if out != "" {
				png, err := token.PNG(payload, size)
				if err != nil {
					fmt.Printf("Error rendering QR code: %v\n", err)
					os.Exit(1)
				}
				if err := os.WriteFile(out, png, 0600); err != nil {
					fmt.Printf("Error writing %s: %v\n", out, err)
					os.Exit(1)
				}
				fmt.Printf("QR code written to %s\n", out)
			}
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id to encode (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "write a QR code PNG to this path")
	cmd.Flags().IntVar(&size, "size", 0, "QR code edge length in pixels")

	return cmd
}

func tokenDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <payload>",
		Short: "Extract the user id from a scanned token payload",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			userID, err := token.Decode(args[0])
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(userID)
		},
	}
}
