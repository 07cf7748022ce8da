// atomdump inspects an atom stream written by the preparator.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/radixdlt/mtps/pkg/atom"
	"github.com/radixdlt/mtps/pkg/crypto"
	"github.com/radixdlt/mtps/pkg/types"
)

func main() {
	args := os.Args[1:]
	path := "atoms"

	for len(args) > 0 {
		switch {
		case args[0] == "--atoms" && len(args) > 1:
			path = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--atoms="):
			path = args[0][len("--atoms="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "stats":
		cmdStats(path)
	case "dump":
		cmdDump(path, cmdArgs)
	case "verify":
		cmdVerify(path)
	case "repair":
		cmdRepair(path)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: atomdump [global flags] <command> [flags]

Global flags:
  --atoms <path>      Atom stream (default: ./atoms)

Commands:
  stats                           Count records, particles and signatures
  dump [--limit <n>] [--skip <n>] [--tx <hash>]
                                  Print records
  verify                          Check every signature and shard set
  repair                          Truncate a torn tail
`)
}

// ── stats ───────────────────────────────────────────────────────────────

func cmdStats(path string) {
	s, err := atom.ScanFile(path, nil)
	if err != nil {
		fatal("scan %s: %v", path, err)
	}
	fmt.Printf("Records:     %d\n", s.Records)
	fmt.Printf("Particles:   %d\n", s.Particles)
	fmt.Printf("Signatures:  %d\n", s.Signatures)
	fmt.Printf("Size:        %d\n", s.Size)
	if s.Torn() {
		fmt.Printf("Torn tail:   %d bytes after offset %d\n", s.Size-s.End, s.End)
	}
}

// ── dump ────────────────────────────────────────────────────────────────

func cmdDump(path string, args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	limit := fs.Uint64("limit", 0, "Stop after n records (0 prints all)")
	skip := fs.Uint64("skip", 0, "Skip the first n records")
	txHex := fs.String("tx", "", "Print only the record of this transaction")
	fs.Parse(args)

	var want types.Hash
	if *txHex != "" {
		h, err := types.HexToHash(*txHex)
		if err != nil {
			fatal("invalid --tx: %v", err)
		}
		want = h
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var n uint64
	_, err := atom.ScanFile(path, func(rec *atom.Record) error {
		n++
		if !want.IsZero() {
			if rec.TxID == want {
				printRecord(out, n-1, rec)
				return errStop
			}
			return nil
		}
		if n <= *skip {
			return nil
		}
		if *limit > 0 && n > *skip+*limit {
			return errStop
		}
		printRecord(out, n-1, rec)
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		out.Flush()
		fatal("scan %s: %v", path, err)
	}
}

var errStop = errors.New("stop")

func printRecord(w *bufio.Writer, index uint64, rec *atom.Record) {
	fmt.Fprintf(w, "#%d tx %s\n", index, rec.TxID)
	fmt.Fprintf(w, "  time:   %s\n", time.UnixMilli(rec.BlockTimeMillis).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "  shards: %v\n", rec.Shards)
	for _, p := range rec.Particles {
		r := p.Record
		fmt.Fprintf(w, "  %-4s %s %s nonce=%d planck=%d\n",
			p.Spin, r.Amount.Dec(), r.Address, r.Nonce, r.Planck)
	}
	for _, s := range rec.Signatures {
		fmt.Fprintf(w, "  sig  %s\n", s.Signer)
	}
}

// ── verify ──────────────────────────────────────────────────────────────

func cmdVerify(path string) {
	kh := crypto.NewKeyHandler()
	var bad, badShards, unsigned uint64
	var index uint64
	s, err := atom.ScanFile(path, func(rec *atom.Record) error {
		valid, total := rec.Verify(kh)
		if total == 0 {
			unsigned++
		} else if valid != total {
			bad++
			fmt.Printf("#%d tx %s: %d of %d signatures valid\n", index, rec.TxID, valid, total)
		}
		if !shardsMatch(rec) {
			badShards++
			fmt.Printf("#%d tx %s: shard set does not match the record owners\n", index, rec.TxID)
		}
		index++
		return nil
	})
	if err != nil {
		fatal("scan %s: %v", path, err)
	}
	fmt.Printf("Verified %d records: %d with bad signatures, %d with bad shards, %d unsigned\n",
		s.Records, bad, badShards, unsigned)
	if bad > 0 || badShards > 0 {
		os.Exit(1)
	}
}

// shardsMatch reports whether the shard tags of rec are exactly the shards
// of its record owners.
func shardsMatch(rec *atom.Record) bool {
	owners := make(map[int64]struct{}, len(rec.Particles))
	for _, p := range rec.Particles {
		addr := p.Record.Address
		owners[crypto.ShardOf(addr[:])] = struct{}{}
	}
	tagged := make(map[int64]struct{}, len(rec.Shards))
	for _, s := range rec.Shards {
		tagged[s] = struct{}{}
	}
	if len(owners) != len(tagged) || len(tagged) != len(rec.Shards) {
		return false
	}
	for s := range owners {
		if _, ok := tagged[s]; !ok {
			return false
		}
	}
	return true
}

// ── repair ──────────────────────────────────────────────────────────────

func cmdRepair(path string) {
	removed, err := atom.Repair(path)
	if err != nil {
		fatal("repair %s: %v", path, err)
	}
	if removed == 0 {
		fmt.Println("Stream is intact")
		return
	}
	fmt.Printf("Removed %d bytes of torn tail\n", removed)
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
