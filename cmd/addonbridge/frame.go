// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/addonbridge/addonbridge/internal/issue"
	"github.com/addonbridge/addonbridge/pkg/frame"
)

// exitNotAFrame is the exit status of `frame decode` on text that fails to decode.
const exitNotAFrame = 2

// newFrameCommand creates the `addonbridge frame` command tree.
func newFrameCommand(app *App) *cobra.Command {
	frameCmd := &cobra.Command{
		Use:   "frame",
		Short: "Encode and decode addon messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	frameCmd.AddCommand(&cobra.Command{
		Use:   "encode <opcode> [hex-payload]",
		Short: "Encode an opcode and hex payload as addon text",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			opcode, err := strconv.ParseUint(args[0], 0, 16)
			if err != nil {
				return fmt.Errorf("invalid opcode %q: %w", args[0], err)
			}
			var payload []byte
			if len(args) == 2 {
				if payload, err = hex.DecodeString(args[1]); err != nil {
					return fmt.Errorf("invalid hex payload: %w", err)
				}
			}
			text, err := frame.Encode(uint16(opcode), payload)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(app.stdout, text)
			return err
		},
	})

	frameCmd.AddCommand(&cobra.Command{
		Use:   "decode <text>",
		Short: "Decode addon text into opcode and hex payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := frame.Decode(args[0])
			if err != nil {
				if frame.IsForeign(err) {
					app.renderIssue(issue.FrameDecodeFailedId)
				}
				return &ExitError{Code: exitNotAFrame, Err: fmt.Errorf("%s: %w", frame.KindOf(err), err)}
			}
			_, err = fmt.Fprintf(app.stdout, "%s %d\n%s %s\n",
				KeyStyle.Render("opcode:"), f.Opcode,
				KeyStyle.Render("payload:"), hex.EncodeToString(f.Payload))
			return err
		},
	})

	return frameCmd
}
