package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cuemby/subnet-watchdog/pkg/nodeconfig"
	"github.com/cuemby/subnet-watchdog/pkg/source"
)

var renderConfigCmd = &cobra.Command{
	Use:   "render-config",
	Short: "Print the node config for the current desired subnets",
	Long: `Fetch the desired subnets and print the node config the watchdog would
write. With --base the config is merged into an existing config file,
otherwise only track-subnets is printed. --base64 prints the compact JSON
base64-encoded, ready to pass to a node as an inline config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, closeSource, err := openSource(cmd.Context())
		if err != nil {
			return err
		}
		defer closeSource()

		state, err := source.Fetch(cmd.Context(), src)
		if err != nil {
			return err
		}

		base := nodeconfig.Document{}
		if path := viper.GetString("base"); path != "" {
			base, err = nodeconfig.Read(path)
			if err != nil {
				return err
			}
		}
		doc := nodeconfig.Render(base, state)

		if viper.GetBool("base64") {
			encoded, err := nodeconfig.EncodeBase64(doc)
			if err != nil {
				return err
			}
			fmt.Println(encoded)
			return nil
		}

		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	addSourceFlags(renderConfigCmd)
	renderConfigCmd.Flags().String("base", "", "Existing node config to merge into")
	renderConfigCmd.Flags().Bool("base64", false, "Print the config base64-encoded")
}
