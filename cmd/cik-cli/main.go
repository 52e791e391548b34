package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pior/cik"
	"github.com/pior/cik/proto"
)

var clearModes = map[string]proto.ClearMode{
	"all":   proto.ClearAll,
	"old":   proto.ClearOld,
	"match": proto.ClearMatchAll,
	"none":  proto.ClearMatchNone,
	"any":   proto.ClearMatchAny,
}

var listModes = map[string]proto.ListMode{
	"keys":  proto.ListKeys,
	"tags":  proto.ListTags,
	"match": proto.ListMatchAll,
	"none":  proto.ListMatchNone,
	"any":   proto.ListMatchAny,
}

func main() {
	addr := flag.String("addr", "127.0.0.1:1121", "CiK server address")
	flag.Parse()

	fmt.Println("CiK CLI Tool")
	fmt.Println("============")
	fmt.Println("Commands:")
	fmt.Println("  get <key>")
	fmt.Println("  set <key> <value> [ttl] [tag,tag,...]")
	fmt.Println("  touch <key> <ttl>")
	fmt.Println("  del <key>")
	fmt.Println("  clr <all|old|match|none|any> [tag,tag,...]")
	fmt.Println("  lst <keys|tags|match|none|any> [tag,tag,...]")
	fmt.Println("  nfo [key]")
	fmt.Println("  stats, quit")
	fmt.Println()

	client, err := cik.NewClient(*addr, cik.Config{})
	if err != nil {
		fmt.Printf("Failed to create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(parts) == 0 {
			continue
		}

		command := strings.ToLower(parts[0])
		ctx := context.Background()

		switch command {
		case "get":
			if len(parts) != 2 {
				fmt.Println("Usage: get <key>")
				continue
			}
			handleGet(ctx, client, parts[1])

		case "set":
			if len(parts) < 3 || len(parts) > 5 {
				fmt.Println("Usage: set <key> <value> [ttl] [tag,tag,...]")
				continue
			}
			handleSet(ctx, client, parts)

		case "touch":
			if len(parts) != 3 {
				fmt.Println("Usage: touch <key> <ttl>")
				continue
			}
			handleTouch(ctx, client, parts[1], parts[2])

		case "del":
			if len(parts) != 2 {
				fmt.Println("Usage: del <key>")
				continue
			}
			handleDelete(ctx, client, parts[1])

		case "clr":
			if len(parts) < 2 || len(parts) > 3 {
				fmt.Println("Usage: clr <all|old|match|none|any> [tag,tag,...]")
				continue
			}
			handleClear(ctx, client, parts)

		case "lst":
			if len(parts) < 2 || len(parts) > 3 {
				fmt.Println("Usage: lst <keys|tags|match|none|any> [tag,tag,...]")
				continue
			}
			handleList(ctx, client, parts)

		case "nfo":
			if len(parts) > 2 {
				fmt.Println("Usage: nfo [key]")
				continue
			}
			handleInfo(ctx, client, parts)

		case "stats":
			fmt.Printf("%+v\n", client.Stats())

		case "quit", "exit":
			return

		default:
			fmt.Printf("Unknown command: %s\n", command)
		}
	}
}

func handleGet(ctx context.Context, client *cik.Client, key string) {
	item, err := client.Get(ctx, key, 0)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if !item.Found {
		fmt.Printf("(%s)\n", item.Condition)
		return
	}
	fmt.Printf("%q\n", item.Value)
}

func handleSet(ctx context.Context, client *cik.Client, parts []string) {
	item := cik.Item{Key: parts[1], Value: []byte(parts[2]), TTL: cik.TTLForever}

	if len(parts) > 3 {
		ttl, err := strconv.ParseInt(parts[3], 10, 32)
		if err != nil {
			fmt.Printf("Invalid ttl: %v\n", err)
			return
		}
		item.TTL = int32(ttl)
	}
	if len(parts) > 4 {
		item.Tags = strings.Split(parts[4], ",")
	}

	stored, err := client.Set(ctx, item)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(outcome(stored))
}

func handleTouch(ctx context.Context, client *cik.Client, key, ttlArg string) {
	ttl, err := strconv.ParseInt(ttlArg, 10, 32)
	if err != nil {
		fmt.Printf("Invalid ttl: %v\n", err)
		return
	}

	touched, err := client.Touch(ctx, key, int32(ttl))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(outcome(touched))
}

func handleDelete(ctx context.Context, client *cik.Client, key string) {
	deleted, err := client.Delete(ctx, key)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(outcome(deleted))
}

func handleClear(ctx context.Context, client *cik.Client, parts []string) {
	mode, ok := clearModes[strings.ToLower(parts[1])]
	if !ok {
		fmt.Printf("Unknown clear mode: %s\n", parts[1])
		return
	}

	var tags []string
	if len(parts) > 2 {
		tags = strings.Split(parts[2], ",")
	}

	cleared, err := client.Clear(ctx, mode, tags)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(outcome(cleared))
}

func handleList(ctx context.Context, client *cik.Client, parts []string) {
	mode, ok := listModes[strings.ToLower(parts[1])]
	if !ok {
		fmt.Printf("Unknown list mode: %s\n", parts[1])
		return
	}

	var tags []string
	if len(parts) > 2 {
		tags = strings.Split(parts[2], ",")
	}

	entries, err := client.List(ctx, mode, tags)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	for _, entry := range entries {
		fmt.Println(entry)
	}
	fmt.Printf("(%d entries)\n", len(entries))
}

func handleInfo(ctx context.Context, client *cik.Client, parts []string) {
	if len(parts) == 1 {
		info, err := client.Info(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Printf("mem_used: %d\nmem_free: %d\nfull: %d%%\n", info.MemUsed, info.MemFree, info.PercentFull())
		return
	}

	info, found, err := client.KeyInfo(ctx, parts[1])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if !found {
		fmt.Println("(not found)")
		return
	}
	if info.Infinite() {
		fmt.Println("expires: never")
	} else {
		fmt.Printf("expires: %d\n", info.Expires)
	}
	fmt.Printf("mtime: %d\ntags: %s\n", info.Mtime, strings.Join(info.Tags, ", "))
}

func outcome(ok bool) string {
	if ok {
		return "OK"
	}
	return "NOT OK"
}
