// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package export

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/luxfi/database/badgerdb"

	"github.com/luxfi/stakevm/utils/compression"
	"github.com/luxfi/stakevm/utils/timer/mockable"
	"github.com/luxfi/stakevm/vms/stakevm/events"
	"github.com/luxfi/stakevm/vms/stakevm/state"
)

const (
	DBDirKey    = "db-dir"
	OutputKey   = "output"
	CompressKey = "compress"
	FromKey     = "from"

	maxExportSize = 1 << 30
	batchSize     = 1024
)

var errNoDBDir = errors.New("db-dir is required")

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "export",
		Short: "Writes the vault's change log to a JSON file",
		RunE:  exportFunc,
	}
	flags := c.Flags()
	flags.String(DBDirKey, "", "Database directory of a stopped vault (required)")
	flags.String(OutputKey, "events.json", "File to write")
	flags.Bool(CompressKey, false, "Compress the output with zstd")
	flags.Uint64(FromKey, 0, "First sequence number to export")
	return c
}

func exportFunc(c *cobra.Command, _ []string) error {
	flags := c.Flags()
	dir, err := flags.GetString(DBDirKey)
	if err != nil {
		return err
	}
	if dir == "" {
		return errNoDBDir
	}
	output, err := flags.GetString(OutputKey)
	if err != nil {
		return err
	}
	compress, err := flags.GetBool(CompressKey)
	if err != nil {
		return err
	}
	from, err := flags.GetUint64(FromKey)
	if err != nil {
		return err
	}

	db, err := badgerdb.New(dir, nil, "", nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	records, err := readEvents(events.NewLog(state.New(db).Events, &mockable.Clock{}), from)
	if err != nil {
		return errors.Join(err, db.Close())
	}
	if err := db.Close(); err != nil {
		return err
	}

	b, err := json.MarshalIndent(records, "", "\t")
	if err != nil {
		return err
	}
	if compress {
		compressor, err := compression.NewZstdCompressor(maxExportSize)
		if err != nil {
			return err
		}
		if b, err = compressor.Compress(b); err != nil {
			return err
		}
	}
	if err := renameio.WriteFile(output, b, 0o644); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.OutOrStdout(), "exported %d events to %s\n", len(records), output)
	return err
}

func readEvents(l *events.Log, from uint64) ([]events.Event, error) {
	var out []events.Event
	for {
		batch, err := l.Range(from, batchSize)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < batchSize {
			return out, nil
		}
		from += uint64(len(batch))
	}
}
