package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/protomaps/tilekiln/format"
	"github.com/protomaps/tilekiln/pipeline"
	"github.com/protomaps/tilekiln/pmtiles"
)

func main() {
	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)

	if len(os.Args) < 2 {
		helptext := `Usage: tilekiln [COMMAND] [ARGS]

Inspecting archives:
tilekiln show INPUT.pmtiles
tilekiln show -tile Z X Y INPUT.pmtiles
tilekiln verify INPUT.pmtiles

Building archives from a pipeline chain:
tilekiln run 'from_container(path=INPUT.pmtiles) | filter(level_max=10)' OUTPUT.pmtiles

Archive maintenance:
tilekiln cluster INPUT.pmtiles OUTPUT.pmtiles
tilekiln merge OUTPUT.pmtiles INPUT1.pmtiles INPUT2.pmtiles [...]`
		fmt.Println(helptext)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "show":
		showCmd := flag.NewFlagSet("show", flag.ExitOnError)
		tile := showCmd.Bool("tile", false, "print the raw bytes of a single tile instead of the header/metadata")
		showCmd.Parse(os.Args[2:])
		args := showCmd.Args()

		var path string
		var z uint64
		var x, y uint64
		var err error
		if *tile {
			if len(args) != 4 {
				logger.Fatalf("USAGE: show -tile Z X Y INPUT.pmtiles")
			}
			if z, err = strconv.ParseUint(args[0], 10, 8); err != nil {
				logger.Fatalf("invalid Z %q: %v", args[0], err)
			}
			if x, err = strconv.ParseUint(args[1], 10, 32); err != nil {
				logger.Fatalf("invalid X %q: %v", args[1], err)
			}
			if y, err = strconv.ParseUint(args[2], 10, 32); err != nil {
				logger.Fatalf("invalid Y %q: %v", args[2], err)
			}
			path = args[3]
		} else {
			if len(args) != 1 {
				logger.Fatalf("USAGE: show INPUT.pmtiles")
			}
			path = args[0]
		}

		ds, err := pmtiles.OpenFileDataSource(path)
		if err != nil {
			logger.Fatalf("failed to open %s: %v", path, err)
		}
		defer ds.Close()
		if err := pmtiles.Show(os.Stdout, ds, *tile, uint8(z), uint32(x), uint32(y)); err != nil {
			logger.Fatalf("failed to show %s: %v", path, err)
		}

	case "verify":
		if len(os.Args) != 3 {
			logger.Fatalf("USAGE: verify INPUT.pmtiles")
		}
		ds, err := pmtiles.OpenFileDataSource(os.Args[2])
		if err != nil {
			logger.Fatalf("failed to open %s: %v", os.Args[2], err)
		}
		defer ds.Close()
		if err := pmtiles.Verify(ds); err != nil {
			logger.Fatalf("verification failed: %v", err)
		}
		logger.Println("archive is valid")

	case "cluster":
		clusterCmd := flag.NewFlagSet("cluster", flag.ExitOnError)
		noDedup := clusterCmd.Bool("no-deduplication", false, "don't re-run content deduplication while clustering")
		clusterCmd.Parse(os.Args[2:])
		args := clusterCmd.Args()
		if len(args) != 2 {
			logger.Fatalf("USAGE: cluster INPUT.pmtiles OUTPUT.pmtiles")
		}
		if _, err := pmtiles.Cluster(args[0], args[1], !*noDedup); err != nil {
			logger.Fatalf("failed to cluster %s: %v", args[0], err)
		}

	case "merge":
		if len(os.Args) < 5 {
			logger.Fatalf("USAGE: merge OUTPUT.pmtiles INPUT1.pmtiles INPUT2.pmtiles [...]")
		}
		output := os.Args[2]
		inputs := os.Args[3:]
		if _, err := pmtiles.Merge(inputs, output); err != nil {
			logger.Fatalf("failed to merge into %s: %v", output, err)
		}

	case "run":
		runCmd := flag.NewFlagSet("run", flag.ExitOnError)
		compressionName := runCmd.String("compression", "gzip", "output tile compression: none, gzip, brotli")
		runCmd.Parse(os.Args[2:])
		args := runCmd.Args()
		if len(args) != 2 {
			logger.Fatalf("USAGE: run 'PIPELINE CHAIN' OUTPUT.pmtiles")
		}
		chain, output := args[0], args[1]

		compression, err := parseCompressionName(*compressionName)
		if err != nil {
			logger.Fatalf("%v", err)
		}

		op, err := pipeline.Build(chain, logger)
		if err != nil {
			logger.Fatalf("failed to build pipeline %q: %v", chain, err)
		}

		src, err := pipeline.NewTileSource(op, compression)
		if err != nil {
			logger.Fatalf("failed to resolve pipeline output shape: %v", err)
		}

		f, err := os.OpenFile(output, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			logger.Fatalf("failed to open %s for writing: %v", output, err)
		}
		defer f.Close()

		if _, err := pmtiles.Write(f, src, format.Gzip); err != nil {
			logger.Fatalf("failed to write %s: %v", output, err)
		}

	default:
		logger.Println("unrecognized command.")
		flag.PrintDefaults()
		os.Exit(1)
	}
}

func parseCompressionName(name string) (format.Compression, error) {
	switch name {
	case "none":
		return format.Uncompressed, nil
	case "gzip":
		return format.Gzip, nil
	case "brotli":
		return format.Brotli, nil
	case "zstd":
		return format.Zstd, nil
	default:
		return format.UnknownCompression, fmt.Errorf("unrecognized compression %q", name)
	}
}
