package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielwarnersmith/trace/internal/digest"
)

var (
	digestFile   string
	digestFormat string
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Generate, store and print session digests",
}

var digestWriteCmd = &cobra.Command{
	Use:   "write <dir>",
	Short: "Store a digest; generated from the session unless --file is given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		var content string
		if digestFile != "" {
			data, err := os.ReadFile(digestFile)
			if err != nil {
				return fmt.Errorf("read digest: %w", err)
			}
			content = string(data)
		} else {
			in, err := digest.Read(d)
			if err != nil {
				return err
			}
			content = digest.Generate(in)
		}
		if err := d.WriteDigest(content); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "digest: updated")
		return nil
	},
}

var digestGenerateCmd = &cobra.Command{
	Use:   "generate <dir>",
	Short: "Print a digest generated from the session without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		r, err := digest.NewRenderer(digestFormat)
		if err != nil {
			return err
		}
		in, err := digest.Read(d)
		if err != nil {
			return err
		}
		out, err := r.Render(in)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var digestShowCmd = &cobra.Command{
	Use:   "show <dir>",
	Short: "Print the stored digest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openSession(args[0])
		if err != nil {
			return err
		}
		content, ok, err := d.ReadDigest()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no digest written for %s", args[0])
		}
		fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	},
}

func init() {
	digestWriteCmd.Flags().StringVar(&digestFile, "file", "", "Markdown file to store as the digest")
	digestGenerateCmd.Flags().StringVar(&digestFormat, "format", "markdown", "output format: markdown or json")
	digestCmd.AddCommand(digestWriteCmd, digestGenerateCmd, digestShowCmd)
	rootCmd.AddCommand(digestCmd)
}
