package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cheynewallace/tabby"
	"github.com/kvfs/kvfs"
	"github.com/kvfs/kvfs/cli"
	"github.com/valyala/fastjson"
)

func main() {
	cli.RegisterStoreFlag()
	flag.Parse()

	store := cli.MustOpenStore()
	defer store.Close()
	cli.RegisterStoreSignalHandlers(store)

	fs := cli.MustAttach(store)

	stats, err := fs.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error collecting stats: %s\n", err)
		os.Exit(1)
	}

	t := tabby.New()
	t.AddHeader("STAT", "VALUE")
	t.AddLine("NextIno", fmt.Sprintf("%d", stats.NextIno))
	t.AddLine("Inodes", fmt.Sprintf("%d", stats.Inodes))
	t.AddLine("Blocks", fmt.Sprintf("%d", stats.Blocks))
	t.AddLine("IndexEntries", fmt.Sprintf("%d", stats.IndexEntries))
	t.Print()

	if fdbStore, ok := store.(*kvfs.FDBStore); ok {
		status, err := fdbStore.ClusterStatus()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error fetching cluster status: %s\n", err)
			os.Exit(1)
		}
		v, err := fastjson.ParseBytes(status)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error parsing cluster status: %s\n", err)
			os.Exit(1)
		}
		ct := tabby.New()
		ct.AddHeader("CLUSTER", "VALUE")
		ct.AddLine("Available", fmt.Sprintf("%t", v.GetBool("client", "database_status", "available")))
		ct.AddLine("Healthy", fmt.Sprintf("%t", v.GetBool("cluster", "data", "state", "healthy")))
		ct.AddLine("KVSizeBytes", fmt.Sprintf("%d", v.GetUint64("cluster", "data", "total_kv_size_bytes")))
		ct.Print()
	}
}
