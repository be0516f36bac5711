package cli

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const pngDataURLPrefix = "data:image/png;base64,"

func (a *App) mfaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mfa",
		Short: "Manage the TOTP second factor",
	}
	cmd.AddCommand(a.mfaEnableCommand(), a.mfaDisableCommand(), a.mfaStatusCommand())
	return cmd
}

func (a *App) mfaEnableCommand() *cobra.Command {
	var qrPath string

	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Generate a new TOTP secret (replaces any existing one)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			e, err := a.client.EnableSecondFactor(cmd.Context())
			if err != nil {
				return err
			}

			success(a.out, "Second factor enabled")
			fmt.Fprintf(a.out, "Secret: %s\n", color.YellowString(e.Secret))
			fmt.Fprintf(a.out, "URI:    %s\n", e.URI)

			if qrPath != "" {
				if err := writeDataURL(qrPath, e.QRDataURL); err != nil {
					return err
				}
				hint(a.out, "QR code written to %s", qrPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&qrPath, "qr", "", "write the enrollment QR code PNG to this file")
	return cmd
}

func writeDataURL(path, dataURL string) error {
	if !strings.HasPrefix(dataURL, pngDataURLPrefix) {
		return fmt.Errorf("%w: unexpected QR code format", common.ErrorValidation)
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, pngDataURLPrefix))
	if err != nil {
		return fmt.Errorf("decode QR code: %w", err)
	}
	return filex.WriteFileAtomic(path, png, 0o600)
}

func (a *App) mfaDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Remove the TOTP secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			if err := a.client.DisableSecondFactor(cmd.Context()); err != nil {
				return err
			}
			success(a.out, "Second factor disabled")
			return nil
		},
	}
}

func (a *App) mfaStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a second factor is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			enabled, err := a.client.SecondFactorStatus(cmd.Context())
			if err != nil {
				return err
			}
			if enabled {
				fmt.Fprintln(a.out, "second factor: "+color.GreenString("enabled"))
			} else {
				fmt.Fprintln(a.out, "second factor: "+color.YellowString("disabled"))
			}
			return nil
		},
	}
}
