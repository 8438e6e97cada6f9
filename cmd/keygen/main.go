// Command keygen prints freshly generated, well-formed license keys, one per
// line. Generated keys grant nothing until an admin registers them through
// the server's admin API.
package main

import (
	"flag"
	"fmt"
	"os"

	"keyserve/internal/license"
)

func main() {
	count := flag.Int("n", 1, "number of keys to generate")
	flag.Parse()

	if *count < 1 {
		fmt.Fprintln(os.Stderr, "keygen: -n must be at least 1")
		os.Exit(2)
	}

	for i := 0; i < *count; i++ {
		key, err := license.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
	}
}
