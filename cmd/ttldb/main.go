// Package main provides the ttldb CLI tool for inspecting and
// maintaining databases that store values with TTL timestamps.
//
// Usage:
//
//	ttldb --db=<path> [--ttl=<duration>] <command> [options]
//
// Commands:
//
//	get <key>       Get value for a key
//	put <key> <val> Put a key-value pair
//	delete <key>    Delete a key
//	dump            Dump entries with decoded write times and ages
//	scrub           Compact the whole database, dropping expired entries
//	info            Print database information
//	stats           Print expiration counters in Prometheus text format
//
// The --db and --ttl flags fall back to the TTLDB_PATH and TTLDB_TTL
// environment variables, loadable from a .env file.
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/aalhour/rockyardkv"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aalhour/ttldb"
)

var (
	dbPath          string
	ttlFlag         string
	hexOutput       bool
	createIfMissing bool
	limit           int
	fromKey         string
	toKey           string
	createdAt       string

	rootCmd = &cobra.Command{
		Use:   "ttldb",
		Short: "Inspect and maintain a TTL key-value database",
		Long: `ttldb opens a rockyardkv database whose values carry TTL
timestamps, decoding the timestamps on read and stamping them on write.`,
		SilenceUsage: true,
	}

	getCmd = &cobra.Command{
		Use:   "get <key>",
		Short: "Get the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(true)
			if err != nil {
				return err
			}
			defer database.Close()

			value, ts, err := database.GetWithTimestamp(nil, []byte(args[0]))
			if errors.Is(err, rockyardkv.ErrNotFound) {
				return fmt.Errorf("key not found: %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s : %s (written %s)\n",
				formatBytes([]byte(args[0])), formatBytes(value),
				time.Unix(int64(ts), 0).UTC().Format(time.RFC3339))
			return nil
		},
	}

	putCmd = &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Put a key-value pair, stamped now or at --created-at",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(false)
			if err != nil {
				return err
			}
			defer database.Close()

			key, value := []byte(args[0]), []byte(args[1])
			if createdAt != "" {
				creation, err := time.Parse(time.RFC3339, createdAt)
				if err != nil {
					return fmt.Errorf("invalid --created-at: %w", err)
				}
				if err := database.PutWithExpiry(nil, key, value, creation); err != nil {
					return err
				}
			} else if err := database.Put(nil, key, value); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(false)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.Delete(nil, []byte(args[0])); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}

	dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Dump entries with decoded write times and ages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(true)
			if err != nil {
				return err
			}
			defer database.Close()

			iter := database.NewIterator(nil)
			defer iter.Close()

			now := time.Now()
			count := 0
			if fromKey != "" {
				iter.Seek([]byte(fromKey))
			} else {
				iter.SeekToFirst()
			}
			for ; iter.Valid(); iter.Next() {
				if toKey != "" && string(iter.Key()) >= toKey {
					break
				}
				if limit > 0 && count >= limit {
					break
				}
				ts, err := iter.Timestamp()
				if err != nil {
					fmt.Printf("%s : <corrupt: %v>\n", formatBytes(iter.Key()), err)
					count++
					continue
				}
				age := now.Sub(time.Unix(int64(ts), 0)).Truncate(time.Second)
				fmt.Printf("%s : %s (written %s, age %s)\n",
					formatBytes(iter.Key()), formatBytes(iter.Value()),
					time.Unix(int64(ts), 0).UTC().Format(time.RFC3339), age)
				count++
			}
			if err := iter.Error(); err != nil && !errors.Is(err, ttldb.ErrCorruptTimestamp) {
				return err
			}
			fmt.Printf("%d entries\n", count)
			return nil
		},
	}

	scrubCmd = &cobra.Command{
		Use:   "scrub",
		Short: "Compact the whole database, dropping expired entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(false)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.Flush(nil); err != nil {
				return err
			}
			if err := database.CompactRange(nil, nil, nil); err != nil {
				return err
			}
			fmt.Printf("scrub complete: %d expired entries dropped, %d corrupt entries kept\n",
				database.ExpiredDropped(), database.CorruptKept())
			return nil
		},
	}

	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Print database information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(true)
			if err != nil {
				return err
			}
			defer database.Close()

			fmt.Printf("path: %s\n", dbPath)
			fmt.Printf("ttl: %s\n", database.TTL())
			fmt.Printf("latest sequence number: %d\n", database.GetLatestSequenceNumber())

			properties := []string{
				"rocksdb.num-files-at-level0",
				"rocksdb.num-files-at-level1",
				"rocksdb.num-files-at-level2",
				"rocksdb.estimate-num-keys",
				"rocksdb.cur-size-all-mem-tables",
				"rocksdb.live-sst-files-size",
				"rocksdb.background-errors",
			}
			for _, prop := range properties {
				if value, ok := database.GetProperty(prop); ok {
					fmt.Printf("%s: %s\n", prop, value)
				}
			}

			for _, file := range database.GetLiveFilesMetaData() {
				fmt.Printf("sst %s: level=%d size=%d keys=[%s, %s]\n",
					file.Name, file.Level, file.Size,
					formatBytes(file.SmallestKey), formatBytes(file.LargestKey))
			}
			return nil
		},
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Print expiration counters in Prometheus text format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDatabase(true)
			if err != nil {
				return err
			}
			defer database.Close()

			// Counters reflect whatever compactions have run in this
			// process; use scrub to force one.
			metrics.WritePrometheus(os.Stdout, false)
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(loadEnvDefaults)

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the database (or TTLDB_PATH)")
	rootCmd.PersistentFlags().StringVar(&ttlFlag, "ttl", "", "time-to-live, e.g. 24h (or TTLDB_TTL; empty disables expiration)")
	rootCmd.PersistentFlags().BoolVar(&hexOutput, "hex", false, "print keys and values in hex")
	rootCmd.PersistentFlags().BoolVar(&createIfMissing, "create-if-missing", false, "create the database if it does not exist")

	dumpCmd.Flags().IntVar(&limit, "limit", 0, "limit number of entries (0 = unlimited)")
	dumpCmd.Flags().StringVar(&fromKey, "from", "", "start key")
	dumpCmd.Flags().StringVar(&toKey, "to", "", "end key (exclusive)")
	putCmd.Flags().StringVar(&createdAt, "created-at", "", "explicit creation time, RFC3339")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(scrubCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statsCmd)
}

func loadEnvDefaults() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
	if dbPath == "" {
		dbPath = os.Getenv("TTLDB_PATH")
	}
	if ttlFlag == "" {
		ttlFlag = os.Getenv("TTLDB_TTL")
	}
}

func openDatabase(readOnly bool) (*ttldb.DB, error) {
	if dbPath == "" {
		return nil, errors.New("--db flag or TTLDB_PATH is required")
	}

	ttl := time.Duration(-1)
	if ttlFlag != "" {
		parsed, err := time.ParseDuration(ttlFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid --ttl: %w", err)
		}
		ttl = parsed
	}

	opts := rockyardkv.DefaultOptions()
	opts.CreateIfMissing = createIfMissing
	return ttldb.Open(dbPath, opts, ttldb.TTLOptions{TTL: ttl, ReadOnly: readOnly})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func formatBytes(b []byte) string {
	if hexOutput {
		return "0x" + hex.EncodeToString(b)
	}
	return string(b)
}
