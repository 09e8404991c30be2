package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newOffsetCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "offset UPLOAD_ID",
		Short: "Print how many bytes the server has received for an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(global)
			if err != nil {
				return err
			}
			off, err := e.coordinator().GetOffset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), off)
			return nil
		},
	}
}

func newFileCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "file FILE_ID",
		Short: "Print metadata of a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(global)
			if err != nil {
				return err
			}
			file, err := e.coordinator().GetFileDetails(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			e.log.Debug().Str("size", humanize.IBytes(uint64(file.Size))).Msg("file found")
			return printJSON(cmd, file)
		},
	}
}

func newAbortCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "abort ITEM_ID",
		Short: "Delete an item together with its partial or complete files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(global)
			if err != nil {
				return err
			}
			return e.coordinator().Abort(cmd.Context(), args[0])
		},
	}
}

func newWhoamiCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Check the token and print the user it belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(global)
			if err != nil {
				return err
			}
			u, err := e.client.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "anonymous")
				return nil
			}
			return printJSON(cmd, u)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
