package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/kvfs/kvfs"
	"github.com/kvfs/kvfs/cli"
)

func main() {
	overwrite := flag.Bool("overwrite", false, "Overwrite any existing filesystem.")
	cli.RegisterStoreFlag()
	flag.Parse()

	store := cli.MustOpenStore()
	defer store.Close()

	err := kvfs.Mkfs(store, kvfs.MkfsOpts{
		Overwrite: *overwrite,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to create filesystem: %s\n", err)
		os.Exit(1)
	}
}
