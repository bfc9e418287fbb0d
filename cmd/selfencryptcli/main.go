package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/i5heu/selfencrypt"
	"github.com/i5heu/selfencrypt/pkg/chunkstore"
	"github.com/i5heu/selfencrypt/pkg/config"
	"github.com/i5heu/selfencrypt/pkg/model"
)

func main() {
	storeCmd := flag.NewFlagSet("store", flag.ExitOnError)
	storeMapFlag := storeCmd.String("map", "", "path to write the data map to (default: <file>.map)")

	retrieveCmd := flag.NewFlagSet("retrieve", flag.ExitOnError)

	configFlag := flag.String("config", "", "path to a YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		fmt.Println("Usage: selfencryptcli [-config file] <command> [arguments]")
		fmt.Println("Commands:")
		fmt.Println("  store <file>")
		fmt.Println("  retrieve <map-file> <output-file>")
		fmt.Println("  info")
		os.Exit(1)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening chunk store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch args[0] {
	case "info":
		printInfo(store)

	case "store":
		storeCmd.Parse(args[1:])
		if storeCmd.NArg() < 1 {
			fmt.Println("Usage: selfencryptcli store <file>")
			os.Exit(1)
		}
		filePath := storeCmd.Arg(0)
		mapPath := *storeMapFlag
		if mapPath == "" {
			mapPath = filePath + ".map"
		}
		storeFile(store, cfg, filePath, mapPath)

	case "retrieve":
		retrieveCmd.Parse(args[1:])
		if retrieveCmd.NArg() < 2 {
			fmt.Println("Usage: selfencryptcli retrieve <map-file> <output-file>")
			os.Exit(1)
		}
		retrieveFile(store, cfg, retrieveCmd.Arg(0), retrieveCmd.Arg(1))

	default:
		fmt.Printf("Unknown command: %s\n", args[0])
		os.Exit(1)
	}
}

func openStore(cfg config.FileConfig) (*chunkstore.BadgerChunkStore, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dataDir = filepath.Join(home, ".selfencrypt", "chunks")
	}
	return chunkstore.OpenBadgerChunkStore(chunkstore.BadgerOptions{Path: dataDir})
}

func engineConfig(cfg config.FileConfig) selfencrypt.Config {
	return selfencrypt.Config{
		ChunkSize:    uint64(cfg.ChunkSize),
		MinChunkSize: uint64(cfg.MinChunkSize),
		NumProcs:     cfg.NumProcs,
	}
}

func storeFile(store chunkstore.ChunkStore, cfg config.FileConfig, filePath, mapPath string) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	enc, err := selfencrypt.New(nil, store, engineConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error constructing encryptor: %v\n", err)
		os.Exit(1)
	}

	if _, err := enc.Write(content, 0); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing content: %v\n", err)
		os.Exit(1)
	}
	if err := enc.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing: %v\n", err)
		os.Exit(1)
	}

	mapBytes, err := enc.DataMap().MarshalBinary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling data map: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(mapPath, mapBytes, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing data map: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Stored successfully. Data map: %s (%d bytes)\n", mapPath, len(content))
}

func retrieveFile(store chunkstore.ChunkStore, cfg config.FileConfig, mapPath, outPath string) {
	mapBytes, err := os.ReadFile(mapPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading data map: %v\n", err)
		os.Exit(1)
	}

	var dm model.DataMap
	if err := dm.UnmarshalBinary(mapBytes); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing data map: %v\n", err)
		os.Exit(1)
	}

	enc, err := selfencrypt.New(&dm, store, engineConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error constructing encryptor: %v\n", err)
		os.Exit(1)
	}

	buf := make([]byte, enc.Size())
	if len(buf) > 0 {
		if _, err := enc.Read(buf, 0); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading content: %v\n", err)
			os.Exit(1)
		}
	}

	if err := os.WriteFile(outPath, buf, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Retrieved successfully.")
}

func printInfo(store *chunkstore.BadgerChunkStore) {
	stats, err := store.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting stats: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Chunk store statistics:")
	fmt.Printf("  Used:  %.1f%%\n", stats.UsedPct)
	fmt.Printf("  Free:  %d bytes\n", stats.FreeBytes)
	fmt.Printf("  Total: %d bytes\n", stats.TotalBytes)
}
