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

package dnsdisc

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"golang.org/x/sync/semaphore"
)

const defaultMaxConcurrentFetches = 5

// Config holds the settings for a Resolver. The zero value is not usable
// directly; NewResolver applies withDefaults before use.
type Config struct {
	Backend Backend // required: how TXT records are fetched

	// ValidSchemes restricts which enode identity schemes a leaf ENR may
	// use. Defaults to enode.ValidSchemes.
	ValidSchemes enr.IdentityScheme

	// SeenSequence tracks the highest root sequence number observed per
	// entry host, across queries made with this Resolver. A nil map
	// disables the check; queries always walk the full tree. Keyed by the
	// fqdn of the entry point of each query, never by a linked subtree's
	// domain.
	SeenSequence map[string]uint64

	// RemoteWhitelist restricts which linked domains may be followed. A
	// nil map allows every domain.
	RemoteWhitelist Whitelist

	// MaxConcurrentFetches bounds how many TXT lookups may be outstanding
	// at once for a single query. Defaults to 5 if zero.
	MaxConcurrentFetches int

	// Logger receives trace and warning output during tree walks. Defaults
	// to log.Root().
	Logger log.Logger
}

func (cfg Config) withDefaults() Config {
	if cfg.ValidSchemes == nil {
		cfg.ValidSchemes = enode.ValidSchemes
	}
	if cfg.MaxConcurrentFetches == 0 {
		cfg.MaxConcurrentFetches = defaultMaxConcurrentFetches
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Root()
	}
	return cfg
}

// Resolver resolves EIP-1459 DNS trees into streams of node records. A single
// Resolver may run many queries concurrently; SeenSequence state, if
// configured, is shared and mutex-guarded across all of them.
type Resolver struct {
	cfg Config
	mu  sync.Mutex
}

// NewResolver creates a Resolver from cfg. cfg.Backend must be non-nil.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg.withDefaults()}
}

func (r *Resolver) staleRoot(host string, seq uint64) bool {
	if r.cfg.SeenSequence == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if last, ok := r.cfg.SeenSequence[host]; ok && seq <= last {
		return true
	}
	r.cfg.SeenSequence[host] = seq
	return false
}

// Query starts resolving the tree published at host. If expectedPK is
// non-nil, the root record's signature is verified against it before the
// tree is walked and a mismatch fails the query with a verification error;
// if expectedPK is nil, the root's signature is accepted unchecked. It
// returns immediately; the walk runs in background goroutines and delivers
// Results on the returned Query until the tree is exhausted. The context
// governs the lifetime of the whole walk: cancelling it, or calling the
// returned Query's Close, stops every outstanding fetch.
func (r *Resolver) Query(ctx context.Context, host string, expectedPK *ecdsa.PublicKey) (*Query, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("dnsdisc: empty host")
	}

	qctx, cancel := context.WithCancel(ctx)
	q := &query{
		ctx:          qctx,
		resolver:     r,
		backend:      r.cfg.Backend,
		sem:          semaphore.NewWeighted(int64(r.cfg.MaxConcurrentFetches)),
		whitelist:    r.cfg.RemoteWhitelist,
		validSchemes: r.cfg.ValidSchemes,
		logger:       r.cfg.Logger,
		out:          make(chan Result, 16),
		visited:      make(map[string]struct{}),
	}
	q.wg.Add(1)
	go q.resolveTree(host, expectedPK)
	go func() {
		q.wg.Wait()
		close(q.out)
	}()

	return &Query{cancel: cancel, out: q.out}, nil
}

// ParseURL splits an "enrtree://<pubkey>@<domain>" link, the form a tree's
// own Link entries use and the form trees are commonly distributed in, into
// the host and public key Query expects.
func ParseURL(url string) (host string, pubkey *ecdsa.PublicKey, err error) {
	if !strings.HasPrefix(url, linkPrefix) {
		return "", nil, entryError{"link", errSyntax}
	}
	link, err := parseLink(url[len(linkPrefix):])
	if err != nil {
		return "", nil, err
	}
	return link.domain, link.pubkey, nil
}

// Query represents one in-flight or completed tree walk.
type Query struct {
	cancel context.CancelFunc
	out    <-chan Result
}

// Records returns the channel Results are delivered on. It closes once
// every reachable record has been visited (or errored) and no further
// items will arrive.
func (q *Query) Records() <-chan Result { return q.out }

// Close cancels the walk. Goroutines already in flight stop as soon as
// they next check the context; Records will close shortly after.
func (q *Query) Close() { q.cancel() }
