// Command kvs-client issues a single get, set, or rm operation against a
// kvs-server, then exits.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mvasko/kvs/internal/client"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:4000", "server address")

	switch cmd {
	case "get":
		fs.Parse(os.Args[2:])
		if fs.NArg() != 1 {
			usage()
			os.Exit(1)
		}
		runGet(*addr, fs.Arg(0))

	case "set":
		fs.Parse(os.Args[2:])
		if fs.NArg() != 2 {
			usage()
			os.Exit(1)
		}
		runSet(*addr, fs.Arg(0), fs.Arg(1))

	case "rm":
		fs.Parse(os.Args[2:])
		if fs.NArg() != 1 {
			usage()
			os.Exit(1)
		}
		runRemove(*addr, fs.Arg(0))

	default:
		usage()
		os.Exit(1)
	}
}

// usage prints the accepted forms. Flag parsing stops at the first
// positional argument, so --addr is only recognized before KEY; a flag
// placed after KEY or VALUE counts as an extra argument and is rejected.
func usage() {
	fmt.Fprintln(os.Stderr, "usage: kvs-client get [--addr IP:PORT] KEY")
	fmt.Fprintln(os.Stderr, "       kvs-client set [--addr IP:PORT] KEY VALUE")
	fmt.Fprintln(os.Stderr, "       kvs-client rm [--addr IP:PORT] KEY")
}

func runGet(addr, key string) {
	c := client.New(addr)
	value, ok, err := c.Get(key)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("Key not found")
		return
	}
	fmt.Println(value)
}

func runSet(addr, key, value string) {
	c := client.New(addr)
	if err := c.Set(key, value); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRemove(addr, key string) {
	c := client.New(addr)
	if err := c.Remove(key); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
