// Inspect an xxdb database: stored metadata, file sizes, index entries and
// per-page record counts.
// Usage: xxdb-inspect -dir data -name mydb [-pages] [-keys]
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OneOfOne/xxhash"
	"github.com/dustin/go-humanize"
	"github.com/nyan233/xxdb"
)

func main() {
	var (
		dir   = flag.String("dir", "data", "data directory")
		name  = flag.String("name", "", "database name")
		pages = flag.Bool("pages", false, "print every page")
		keys  = flag.Bool("keys", false, "print every index entry")
	)
	flag.Parse()
	if *name == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -dir <dir> -name <db> [-pages] [-keys]\n", os.Args[0])
		os.Exit(1)
	}
	if err := inspect(*dir, *name, *pages, *keys); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func inspect(dir, name string, pages, keys bool) (err error) {
	files, err := filepath.Glob(filepath.Join(dir, name+".*xxdb"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files of %s in %s", name, dir)
	}
	opts := xxdb.DefaultOptions()
	opts.LogLevel = "warn"
	opts.FlushPeriod = 0
	opts.Index.MMap = false
	for _, f := range files {
		// the index kind is not part of the stored metadata
		if filepath.Base(f) == name+".sqlite.idx.xxdb" {
			opts.Index.Kind = xxdb.IndexSQLite.String()
		}
	}
	db, err := xxdb.Open(dir, name, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); err == nil {
			err = closeErr
		}
	}()

	meta := db.Meta()
	fmt.Printf("database   %s\n", name)
	fmt.Printf("disk       %s\n", meta.Disk)
	fmt.Printf("page size  %s\n", humanize.IBytes(uint64(meta.PageSize)))
	if meta.PagesPerBlock > 0 {
		fmt.Printf("block      %d pages\n", meta.PagesPerBlock)
	}
	fmt.Printf("index      key %dB value %dB\n", meta.IndexKeySize, meta.IndexValueSize)
	if meta.Comment != "" {
		fmt.Printf("comment    %s\n", meta.Comment)
	}
	for _, f := range files {
		stat, err := os.Stat(f)
		if err != nil {
			return err
		}
		fmt.Printf("file       %-40s %s\n", filepath.Base(f), humanize.IBytes(uint64(stat.Size())))
	}
	st := db.Stat()
	fmt.Printf("pages      %s\n", humanize.Comma(int64(st.PageCount)))
	fmt.Printf("keys       %s\n", humanize.Comma(int64(st.IndexLen)))

	if keys {
		fmt.Println("\nkey -> page")
		err = db.RangeKeys(func(key uint64, id xxdb.PageID) bool {
			fmt.Printf("  %d -> %s\n", key, id)
			return true
		})
		if err != nil {
			return err
		}
	}
	if pages {
		fmt.Println("\npage  records  bytes  xxhash64")
		err = db.ScanPages(func(id xxdb.PageID, records [][]byte) bool {
			var (
				size int
				h    = xxhash.New64()
			)
			for _, rec := range records {
				size += len(rec)
				_, _ = h.Write(rec)
			}
			fmt.Printf("  %-5s %-8d %-6d %016x\n", id, len(records), size, h.Sum64())
			return true
		})
		if err != nil {
			return err
		}
	}
	return nil
}
