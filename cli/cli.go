package cli

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/kvfs/kvfs"
	"golang.org/x/sys/unix"
)

var StoreSpec string

func RegisterStoreFlag() {
	defaultStore := os.Getenv("KVFS_STORE")
	if defaultStore == "" {
		defaultStore = "badger:./kvfs-data"
	}

	flag.StringVar(
		&StoreSpec,
		"store",
		defaultStore,
		"Store to operate on, e.g. 'badger:/var/lib/kvfs' or 'fdb:/etc/foundationdb/fdb.cluster'. Defaults to KVFS_STORE if set.",
	)
}

func RegisterStoreSignalHandlers(store kvfs.Store) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, unix.SIGINT, unix.SIGTERM)

	go func() {
		<-sigChan
		signal.Reset()
		fmt.Fprintf(os.Stderr, "closing down due to signal...\n")
		err := store.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error closing store: %s\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}()
}

func MustOpenStore() kvfs.Store {
	store, err := kvfs.OpenStore(StoreSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to open store: %s\n", err)
		os.Exit(1)
	}
	return store
}

func MustAttach(store kvfs.Store) *kvfs.Fs {
	fs, err := kvfs.Attach(store, kvfs.AttachOpts{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to attach to filesystem: %s\n", err)
		os.Exit(1)
	}
	return fs
}
