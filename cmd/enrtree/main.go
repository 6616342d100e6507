// Copyright 2025 R5 Labs
// This file is part of the R5 Core library.
//
// This software is provided "as is", without warranty of any kind,
// express or implied, including but not limited to the warranties
// of merchantability, fitness for a particular purpose and
// noninfringement. In no event shall the authors or copyright
// holders be liable for any claim, damages, or other liability,
// whether in an action of contract, tort or otherwise, arising
// from, out of or in connection with the software or the use or
// other dealings in the software.

// Command enrtree resolves an EIP-1459 DNS node list and prints every
// discovered record to stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/eth-dns/enrtree/dnsdisc"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	timeoutFlag = &cli.IntFlag{
		Name:  "timeout",
		Usage: "Seconds to wait for the query to finish before giving up, 0 waits forever",
		Value: 30,
	}
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "Enable trace-level logging",
	}
)

func main() {
	app := &cli.App{
		Name:   "enrtree",
		Usage:  "resolve an EIP-1459 DNS node list",
		Flags:  []cli.Flag{timeoutFlag, verboseFlag},
		Action: query,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func query(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: enrtree <enrtree://pubkey@domain>")
	}
	host, pubkey, err := dnsdisc.ParseURL(ctx.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid tree URL: %w", err)
	}

	level := log.LvlInfo
	if ctx.Bool(verboseFlag.Name) {
		level = log.LvlTrace
	}
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, level, false)
	log.SetDefault(log.NewLogger(handler))

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if t := ctx.Int(timeoutFlag.Name); t > 0 {
		runCtx, cancel = context.WithTimeout(context.Background(), time.Duration(t)*time.Second)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		cancel()
	}()

	resolver := dnsdisc.NewResolver(dnsdisc.Config{Backend: dnsdisc.DNSBackend{}})
	q, err := resolver.Query(runCtx, host, pubkey)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer q.Close()

	var found int
	for r := range q.Records() {
		if r.Err != nil {
			log.Error("resolve error", "err", r.Err)
			continue
		}
		found++
		fmt.Println(r.Node)
	}
	log.Info("query finished", "nodes", found)
	return nil
}
