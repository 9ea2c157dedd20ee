package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/totegamma/starnet/client"
)

var (
	nodeURL     string
	avatarID    string
	holonFamily string
	holonVer    int
)

var holonCmd = &cobra.Command{
	Use:   "holon",
	Short: "Inspect holons on a running node",
}

var holonGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one holon version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(nodeURL).WithAvatar(avatarID)
		h, err := c.GetHolon(cmd.Context(), holonFamily, args[0], holonVer)
		if err != nil {
			return fmt.Errorf("loading holon: %w", err)
		}
		return printJSON(h)
	},
}

var holonVersionsCmd = &cobra.Command{
	Use:   "versions <id>",
	Short: "List every version of a holon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(nodeURL).WithAvatar(avatarID)
		list, err := c.Versions(cmd.Context(), holonFamily, args[0])
		if err != nil {
			return fmt.Errorf("loading versions: %w", err)
		}
		return printJSON(list)
	},
}

var holonNetworkCmd = &cobra.Command{
	Use:   "network",
	Short: "List holons registered on the network",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := client.New(nodeURL).Network(cmd.Context(), holonFamily)
		if err != nil {
			return fmt.Errorf("loading network: %w", err)
		}
		return printJSON(entries)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	holonCmd.PersistentFlags().StringVar(&nodeURL, "node", "http://localhost:8000", "node base url")
	holonCmd.PersistentFlags().StringVar(&avatarID, "avatar", "", "avatar id to act as")
	holonCmd.PersistentFlags().StringVarP(&holonFamily, "family", "f", "holons", "holon family")
	holonGetCmd.Flags().IntVar(&holonVer, "version", 0, "version, 0 for latest")

	holonCmd.AddCommand(holonGetCmd)
	holonCmd.AddCommand(holonVersionsCmd)
	holonCmd.AddCommand(holonNetworkCmd)
}
