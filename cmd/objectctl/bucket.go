package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/abduss/objectd/internal/bucket"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var bucketCreateConfig struct {
	adapter string
	owner   string
	public  bool
}

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Create, delete and list buckets",
}

var bucketCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a bucket and its directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapterName := bucketCreateConfig.adapter
		if adapterName == "" {
			adapterName = ctl.app.Config.Storage.DefaultAdapter
		}
		adapter, err := ctl.app.Buckets.NewAdapter(adapterName)
		if err != nil {
			return err
		}

		var owner *string
		if bucketCreateConfig.owner != "" {
			owner = &bucketCreateConfig.owner
		}

		b, err := ctl.app.Buckets.CreateBucket(cmd.Context(), adapter, args[0], owner, bucketCreateConfig.public)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), b)
	},
}

var bucketDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a bucket with every object in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deleted, err := ctl.app.Buckets.DeleteBucket(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return bucket.ErrBucketNotFound
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted bucket %s\n", args[0])
		return nil
	},
}

var bucketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List buckets with their usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		buckets, err := ctl.app.Buckets.ListBuckets(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tADAPTER\tPUBLIC\tOBJECTS\tSIZE\tURL")
		for _, b := range buckets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				b.Name,
				b.Adapter,
				strconv.FormatBool(b.Public),
				b.Usage.FileCount,
				humanize.Bytes(uint64(b.Usage.TotalBytes)),
				b.URL,
			)
		}
		return w.Flush()
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(bucketCmd)
	bucketCmd.AddCommand(bucketCreateCmd, bucketDeleteCmd, bucketListCmd)

	bucketCreateCmd.Flags().StringVarP(&bucketCreateConfig.adapter, "adapter", "a", "", "storage adapter: blob or keypath (defaults to OBJECTD_DEFAULT_ADAPTER)")
	bucketCreateCmd.Flags().StringVarP(&bucketCreateConfig.owner, "owner", "o", "", "optional owner recorded on the bucket")
	bucketCreateCmd.Flags().BoolVar(&bucketCreateConfig.public, "public", false, "make every object in the bucket publicly readable")
}
