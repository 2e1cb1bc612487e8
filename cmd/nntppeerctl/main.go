// nntppeerctl is the admin CLI for newsgroups, peers, and feeds: the
// operator-facing counterpart to cmd/nntpd. Grounded on
// cmd/usermgr/main.go's flag-driven subcommand shape, reworked onto
// capability.PersistenceService instead of *database.Database/*models.NNTPUser.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/config"
	"github.com/go-while/nntpd/internal/domain"
	"github.com/go-while/nntpd/internal/persistence/memory"
	"github.com/go-while/nntpd/internal/persistence/sqlite"
)

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	var (
		addPeer   = flag.Bool("addpeer", false, "Add a peer")
		listPeers = flag.Bool("listpeers", false, "List all peers")
		addFeed   = flag.Bool("addfeed", false, "Subscribe a newsgroup to a peer's feed")
		listFeeds = flag.Bool("listfeeds", false, "List a newsgroup's feeds")
		addGroup  = flag.Bool("addgroup", false, "Create a local newsgroup")

		label       = flag.String("label", "", "peer label")
		address     = flag.String("address", "", "peer address (host:port)")
		authUser    = flag.String("authuser", "", "AUTHINFO username to store with this peer (prompts for the password)")
		group       = flag.String("group", "", "newsgroup name")
		description = flag.String("description", "", "newsgroup description")
		moderated   = flag.Bool("moderated", false, "newsgroup requires moderation")
		prohibited  = flag.Bool("prohibited", false, "newsgroup prohibits local posting")
	)
	flag.Parse()

	if !*addPeer && !*listPeers && !*addFeed && !*listFeeds && !*addGroup {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -addpeer -label upstream -address news.example.org:119\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -addgroup -group comp.lang.go -description \"Go discussion\"\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -addfeed -group comp.lang.go -address news.example.org:119\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -listpeers\n", os.Args[0])
		os.Exit(1)
	}

	persist, err := openPersistence()
	if err != nil {
		log.Fatalf("failed to initialize persistence: %v", err)
	}
	ctx := context.Background()

	switch {
	case *addPeer:
		if *address == "" {
			log.Fatal("-address is required for -addpeer")
		}
		authPass := ""
		if *authUser != "" {
			authPass = readPassword(fmt.Sprintf("AUTHINFO password for %s: ", *authUser))
		}
		if err := persist.AddPeer(ctx, *label, *address, *authUser, authPass); err != nil {
			log.Fatalf("failed to add peer: %v", err)
		}
		fmt.Printf("peer %q (%s) added\n", *label, *address)

	case *listPeers:
		if err := listAllPeers(ctx, persist); err != nil {
			log.Fatalf("failed to list peers: %v", err)
		}

	case *addGroup:
		if *group == "" {
			log.Fatal("-group is required for -addgroup")
		}
		name, err := domain.NewNewsgroupName(*group)
		if err != nil {
			log.Fatalf("invalid newsgroup name %q: %v", *group, err)
		}
		mode := domain.PostingAllowed
		switch {
		case *moderated:
			mode = domain.PostingModerated
		case *prohibited:
			mode = domain.PostingProhibited
		}
		if err := persist.AddGroup(ctx, name, *description, mode, time.Now().UTC(), "nntppeerctl", false); err != nil {
			log.Fatalf("failed to add group: %v", err)
		}
		fmt.Printf("newsgroup %q added (posting: %s)\n", name.String(), mode)

	case *addFeed:
		if *group == "" || *address == "" {
			log.Fatal("-group and -address are required for -addfeed")
		}
		name, err := domain.NewNewsgroupName(*group)
		if err != nil {
			log.Fatalf("invalid newsgroup name %q: %v", *group, err)
		}
		if err := persist.AddFeed(ctx, name, *address); err != nil {
			log.Fatalf("failed to add feed: %v", err)
		}
		fmt.Printf("feed %s -> %s added\n", name.String(), *address)

	case *listFeeds:
		if *group == "" {
			log.Fatal("-group is required for -listfeeds")
		}
		name, err := domain.NewNewsgroupName(*group)
		if err != nil {
			log.Fatalf("invalid newsgroup name %q: %v", *group, err)
		}
		if err := listGroupFeeds(ctx, persist, name); err != nil {
			log.Fatalf("failed to list feeds: %v", err)
		}
	}
}

func openPersistence() (capability.PersistenceService, error) {
	dbPath := os.Getenv("NNTPD_DB_PATH")
	if dbPath == "" {
		log.Printf("NNTPD_DB_PATH not set, using in-memory persistence (changes are not durable)")
		return memory.New(), nil
	}
	return sqlite.Open(dbPath)
}

func listAllPeers(ctx context.Context, persist capability.PersistenceService) error {
	peers, err := persist.GetPeers(ctx)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		fmt.Println("no peers configured")
		return nil
	}
	for _, p := range peers {
		caps := make([]string, 0, len(p.Capabilities))
		for c, ok := range p.Capabilities {
			if ok {
				caps = append(caps, string(c))
			}
		}
		fetched := "never"
		if p.ListLastFetched != nil {
			fetched = p.ListLastFetched.Format(time.RFC3339)
		}
		fmt.Printf("%-16s %-32s disabled=%-5v caps=[%s] last-fetched=%s\n",
			p.Label, p.Address, p.Disabled, strings.Join(caps, ","), fetched)
	}
	return nil
}

func listGroupFeeds(ctx context.Context, persist capability.PersistenceService, name domain.NewsgroupName) error {
	feeds, err := persist.GetFeeds(ctx, name)
	if err != nil {
		return err
	}
	if len(feeds) == 0 {
		fmt.Printf("no feeds for %s\n", name.String())
		return nil
	}
	for _, f := range feeds {
		synced := "never"
		if f.LastSyncTime != nil {
			synced = f.LastSyncTime.Format(time.RFC3339)
		}
		fmt.Printf("%-32s last-sync=%s\n", f.PeerAddress, synced)
	}
	return nil
}

func readPassword(prompt string) string {
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		log.Fatalf("failed to read password: %v", err)
	}
	return string(b)
}
