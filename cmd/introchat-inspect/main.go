// introchat-inspect dumps store contents for a running or offline
// database. Handy when debugging thread state or delivery status without
// going through the HTTP surface.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"introchat/pkg/logger"
	"introchat/pkg/store"
)

func main() {
	var (
		dbPath   = flag.String("db", "./.database", "Pebble DB path")
		threadID = flag.String("thread", "", "dump messages for this thread")
		userID   = flag.String("user", "", "list threads for this user")
		subs     = flag.Bool("subs", false, "list subscription snapshots")
	)
	flag.Parse()
	logger.Init()

	if err := store.Open(*dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	switch {
	case *threadID != "":
		t, err := store.GetThread(*threadID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "thread %s: %v\n", *threadID, err)
			os.Exit(1)
		}
		_ = enc.Encode(t)
		msgs, err := store.ListMessages(*threadID, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "messages: %v\n", err)
			os.Exit(1)
		}
		for _, m := range msgs {
			_ = enc.Encode(m)
		}
	case *userID != "":
		threads, err := store.ListThreadsByUser(*userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "threads for %s: %v\n", *userID, err)
			os.Exit(1)
		}
		for _, t := range threads {
			_ = enc.Encode(t)
		}
	case *subs:
		list, err := store.ListSubscriptions()
		if err != nil {
			fmt.Fprintf(os.Stderr, "subscriptions: %v\n", err)
			os.Exit(1)
		}
		for _, s := range list {
			_ = enc.Encode(s)
		}
	default:
		fmt.Fprintln(os.Stderr, "one of --thread, --user or --subs required")
		os.Exit(2)
	}
}
