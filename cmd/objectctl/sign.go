package main

import (
	"time"

	"github.com/abduss/objectd/internal/presigned"
	"github.com/spf13/cobra"
)

var signConfig struct {
	ttl time.Duration
}

var signCmd = &cobra.Command{
	Use:   "sign BUCKET KEY",
	Short: "Issue a time-limited read URL for an object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		obj, err := ctl.app.Files.Resolve(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		ttl := signConfig.ttl
		if ttl == 0 {
			ttl = ctl.app.Signer.DefaultTTL()
		}
		token, expiresAt, err := ctl.app.Signer.IssueReadToken(obj.BucketName, obj.Key, ttl)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"url":        presigned.SignedURL(obj.URL, token),
			"token":      token,
			"expires_at": expiresAt,
		})
	},
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().DurationVar(&signConfig.ttl, "ttl", 0, "token lifetime (defaults to OBJECTD_SIGNATURE_TTL)")
}
