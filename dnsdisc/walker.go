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
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"golang.org/x/sync/semaphore"
)

// branchKind records which of the two subtrees a branch node belongs to.
// The root record has two independent roots, eroot and lroot, and the two
// subtrees they head are never allowed to mix record kinds: the enr subtree
// may only contain branch and enr entries, the link subtree only branch and
// link entries.
type branchKind int

const (
	enrBranch branchKind = iota
	linkBranch
)

// Result is one item produced while walking a tree: either a discovered
// node, or an error encountered resolving one fqdn. A failure in one
// subtree never stops delivery of results from the rest of the tree.
type Result struct {
	Node *enode.Node
	Err  error
}

// protocolError reports a record found in a place the grammar forbids: a
// kind mismatch between a branch and its subtree, or a root record found
// below the top of a tree.
type protocolError struct {
	fqdn string
	msg  string
}

func (e protocolError) Error() string { return fmt.Sprintf("%s: %s", e.fqdn, e.msg) }

// wrapName ensures err carries fqdn context, without double-wrapping an
// error a Backend implementation already wrapped itself.
func wrapName(fqdn string, err error) error {
	if err == nil {
		return nil
	}
	var ne nameError
	if errors.As(err, &ne) {
		return err
	}
	return nameError{fqdn, err}
}

// query holds the state of a single in-flight Resolver.Query call. It is
// created fresh for every call and discarded once its output channel
// closes.
type query struct {
	ctx          context.Context
	resolver     *Resolver
	backend      Backend
	sem          *semaphore.Weighted
	whitelist    Whitelist
	validSchemes enr.IdentityScheme
	logger       log.Logger
	out          chan Result
	wg           sync.WaitGroup

	mu      sync.Mutex
	visited map[string]struct{}
}

// fetch retrieves the TXT record at fqdn, bounding the number of lookups
// outstanding at once via the query's semaphore. Every child record,
// however many there are, is still fetched from its own goroutine; the
// semaphore only throttles how many of those goroutines may be waiting on
// the network simultaneously.
func (q *query) fetch(fqdn string) (string, error) {
	if err := q.sem.Acquire(q.ctx, 1); err != nil {
		return "", err
	}
	defer q.sem.Release(1)
	q.logger.Trace("dnsdisc: fetching record", "fqdn", fqdn)
	return q.backend.GetRecord(q.ctx, fqdn)
}

// markVisited reports whether domain has not yet been seen in this query,
// marking it seen as a side effect. It is what keeps cyclic or duplicated
// links from recursing forever.
func (q *query) markVisited(domain string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.visited[domain]; ok {
		return false
	}
	q.visited[domain] = struct{}{}
	return true
}

func (q *query) emit(r Result) {
	select {
	case q.out <- r:
	case <-q.ctx.Done():
	}
}

// resolveTree fetches and verifies the root record at domain, then spawns
// one goroutine per subtree (enr and link) to walk it. It is the entry
// point both for the query's initial host and for every linked subtree
// discovered while walking a link branch. pubkey is the expected signer;
// when nil, the root's signature is not checked, matching a query made
// with no expected public key.
func (q *query) resolveTree(domain string, pubkey *ecdsa.PublicKey) {
	defer q.wg.Done()
	if !q.markVisited(domain) {
		return
	}

	txt, err := q.fetch(domain)
	if err != nil {
		err = wrapName(domain, err)
		var ne nameError
		if errors.As(err, &ne) && errors.Is(ne.err, errNoRecord) {
			q.logger.Warn("dnsdisc: no root record found", "domain", domain)
			return
		}
		q.emit(Result{Err: err})
		return
	}

	e, err := parseEntry(txt, q.validSchemes)
	if err != nil {
		q.emit(Result{Err: wrapName(domain, err)})
		return
	}
	root, ok := e.(*rootEntry)
	if !ok {
		q.emit(Result{Err: protocolError{domain, "record at tree root is not a root entry"}})
		return
	}
	if pubkey != nil {
		verified, err := root.verifySignature(pubkey)
		if err != nil {
			q.emit(Result{Err: wrapName(domain, err)})
			return
		}
		if !verified {
			q.emit(Result{Err: nameError{domain, errInvalidSig}})
			return
		}
	}
	// SeenSequence gates only the query's entry host. That host is the first
	// domain marked visited, and nothing else is walked until its root has
	// passed this check, so it is the only call that sees one visited domain.
	q.mu.Lock()
	entryHost := len(q.visited) == 1
	q.mu.Unlock()
	if entryHost && q.resolver.staleRoot(domain, root.seq) {
		q.logger.Trace("dnsdisc: root sequence already seen", "domain", domain, "seq", root.seq)
		return
	}

	q.wg.Add(2)
	go q.walkBranch(domain, root.eroot, enrBranch)
	go q.walkBranch(domain, root.lroot, linkBranch)
}

// walkBranch resolves the record at hash.host and continues the walk
// according to its kind: a branch fans out one goroutine per child, a link
// starts a new resolveTree if its domain is whitelisted, and an enr is
// delivered as a Result. A kind mismatch — a link under the enr subtree, an
// enr under the link subtree, or a root record anywhere but the top — is
// reported as a protocolError without aborting the rest of the walk.
func (q *query) walkBranch(host, hash string, kind branchKind) {
	defer q.wg.Done()
	fqdn := hash + "." + host

	txt, err := q.fetch(fqdn)
	if err != nil {
		err = wrapName(fqdn, err)
		var ne nameError
		if errors.As(err, &ne) && errors.Is(ne.err, errNoRecord) {
			q.logger.Warn("dnsdisc: empty child", "fqdn", fqdn)
			return
		}
		q.emit(Result{Err: err})
		return
	}
	e, err := parseEntry(txt, q.validSchemes)
	if err != nil {
		q.emit(Result{Err: wrapName(fqdn, err)})
		return
	}

	switch v := e.(type) {
	case *rootEntry:
		q.emit(Result{Err: protocolError{fqdn, "unexpected root record below tree top"}})

	case *branchEntry:
		if len(v.children) == 0 {
			q.logger.Warn("dnsdisc: empty branch", "fqdn", fqdn)
			return
		}
		q.wg.Add(len(v.children))
		for _, child := range v.children {
			go q.walkBranch(host, child, kind)
		}

	case *linkEntry:
		if kind != linkBranch {
			q.emit(Result{Err: protocolError{fqdn, "link record found under enr subtree"}})
			return
		}
		if !domainIsAllowed(q.whitelist, v) {
			q.logger.Warn("dnsdisc: link domain not allowed", "domain", v.domain)
			return
		}
		q.wg.Add(1)
		go q.resolveTree(v.domain, v.pubkey)

	case *enrEntry:
		if kind != enrBranch {
			q.emit(Result{Err: protocolError{fqdn, "enr record found under link subtree"}})
			return
		}
		q.emit(Result{Node: v.node})
	}
}
