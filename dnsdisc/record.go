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
	"crypto/ecdsa"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/ethereum/go-ethereum/rlp"
)

// Four record kinds make up the enrtree wire format.
const (
	rootPrefix   = "enrtree-root:v1"
	linkPrefix   = "enrtree://"
	branchPrefix = "enrtree-branch:"
	enrPrefix    = "enr:"

	base32HashLen = 26 // base32(no-pad) encoding of a 16-byte hash
)

var (
	b32format = base32.StdEncoding.WithPadding(base32.NoPadding)
	b64format = base64.RawURLEncoding
)

// entry is the sum type of the four record kinds. Only rootEntry is ever
// found at the top of a tree; the others are leaves or intermediate nodes
// reachable through branches.
type entry interface {
	fmt.Stringer
}

type (
	rootEntry struct {
		eroot string
		lroot string
		seq   uint64
		sig   []byte // 65 bytes: r (32) || s (32) || recovery id (1)
	}
	branchEntry struct {
		children []string
	}
	linkEntry struct {
		domain string
		pubkey *ecdsa.PublicKey
	}
	enrEntry struct {
		node *enode.Node
	}
)

func (e *rootEntry) String() string   { return e.unsignedString() + " sig=" + b64format.EncodeToString(e.sig) }
func (e *branchEntry) String() string { return branchPrefix + strings.Join(e.children, ",") }
func (e *enrEntry) String() string {
	enc, err := rlp.EncodeToBytes(e.node.Record())
	if err != nil {
		return enrPrefix
	}
	return enrPrefix + b64format.EncodeToString(enc)
}
func (e *linkEntry) String() string {
	return linkPrefix + b32format.EncodeToString(crypto.CompressPubkey(e.pubkey)) + "@" + e.domain
}

// unsignedString is the exact UTF-8 text that gets keccak256-hashed and
// signed; it excludes the "sig=" field.
func (e *rootEntry) unsignedString() string {
	return fmt.Sprintf("%s e=%s l=%s seq=%d", rootPrefix, e.eroot, e.lroot, e.seq)
}

func (e *rootEntry) sigHash() []byte {
	return crypto.Keccak256([]byte(e.unsignedString()))
}

// verifySignature recovers the signer of e and reports whether it matches pk.
func (e *rootEntry) verifySignature(pk *ecdsa.PublicKey) (bool, error) {
	if len(e.sig) != 65 {
		return false, entryError{"root", errInvalidSig}
	}
	recovered, err := crypto.SigToPub(e.sigHash(), e.sig)
	if err != nil {
		return false, entryError{"root", errInvalidSig}
	}
	return recovered.Equal(pk), nil
}

// Errors produced by the codec. They are compared by value, not by message,
// so callers can use errors.Is against them.
var (
	errSyntax       = errors.New("invalid syntax")
	errInvalidChild = errors.New("invalid child hash")
	errInvalidSig   = errors.New("invalid signature")
	errNoPubkey     = errors.New("missing public key")
	errBadPubkey    = errors.New("invalid public key")
	errInvalidENR   = errors.New("invalid node record")
	errUnknownEntry = errors.New("invalid record")
)

// entryError reports a codec failure together with the record kind being
// parsed when it happened.
type entryError struct {
	typ string
	err error
}

func (e entryError) Error() string { return fmt.Sprintf("invalid %s entry: %v", e.typ, e.err) }
func (e entryError) Unwrap() error { return e.err }

// parseEntry dispatches on the record's textual prefix. It is the single
// entry point used both for the top-level root record and for every
// subdomain lookup during tree traversal, so a root record appearing where
// a branch, link, or ENR was expected parses successfully and is rejected
// later as a protocol error rather than a codec error.
func parseEntry(e string, validSchemes enr.IdentityScheme) (entry, error) {
	switch {
	case strings.HasPrefix(e, rootPrefix):
		r, err := parseRoot(e)
		if err != nil {
			return nil, err
		}
		return &r, nil
	case strings.HasPrefix(e, linkPrefix):
		return parseLink(e[len(linkPrefix):])
	case strings.HasPrefix(e, branchPrefix):
		return parseBranch(e[len(branchPrefix):])
	case strings.HasPrefix(e, enrPrefix):
		return parseENR(e[len(enrPrefix):], validSchemes)
	default:
		return nil, errUnknownEntry
	}
}

// parseRoot parses the full text of an enrtree-root:v1 record, including
// its prefix.
func parseRoot(e string) (rootEntry, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(e, rootPrefix))

	var eroot, lroot, seqStr, sigStr string
	var haveE, haveL, haveSeq, haveSig bool
	for _, tok := range strings.Fields(rest) {
		switch {
		case strings.HasPrefix(tok, "e="):
			eroot, haveE = tok[2:], true
		case strings.HasPrefix(tok, "l="):
			lroot, haveL = tok[2:], true
		case strings.HasPrefix(tok, "seq="):
			seqStr, haveSeq = tok[4:], true
		case strings.HasPrefix(tok, "sig="):
			sigStr, haveSig = tok[4:], true
		default:
			return rootEntry{}, entryError{"root", errSyntax}
		}
	}
	if !haveE || !haveL || !haveSeq || !haveSig {
		return rootEntry{}, entryError{"root", errSyntax}
	}
	seq, err := strconv.ParseUint(seqStr, 10, 64)
	if err != nil {
		return rootEntry{}, entryError{"root", errSyntax}
	}
	if !isValidHash(eroot) || !isValidHash(lroot) {
		return rootEntry{}, entryError{"root", errInvalidChild}
	}
	sig, err := b64format.DecodeString(sigStr)
	if err != nil || len(sig) < 65 {
		return rootEntry{}, entryError{"root", errInvalidSig}
	}
	return rootEntry{eroot: eroot, lroot: lroot, seq: seq, sig: sig[:65]}, nil
}

func parseLink(e string) (*linkEntry, error) {
	pos := strings.IndexByte(e, '@')
	if pos == -1 {
		return nil, entryError{"link", errNoPubkey}
	}
	keystring, domain := e[:pos], e[pos+1:]
	if domain == "" {
		return nil, entryError{"link", errNoPubkey}
	}
	keybytes, err := b32format.DecodeString(keystring)
	if err != nil {
		return nil, entryError{"link", errBadPubkey}
	}
	pubkey, err := crypto.DecompressPubkey(keybytes)
	if err != nil {
		return nil, entryError{"link", errBadPubkey}
	}
	return &linkEntry{domain: domain, pubkey: pubkey}, nil
}

func parseBranch(e string) (*branchEntry, error) {
	if e == "" {
		return &branchEntry{}, nil
	}
	seen := make(map[string]struct{})
	var children []string
	for _, c := range strings.Split(e, ",") {
		if c == "" {
			continue // tolerate empty tokens between commas
		}
		if !isValidHash(c) {
			return nil, entryError{"branch", errInvalidChild}
		}
		if _, ok := seen[c]; ok {
			continue // set semantics: duplicates collapse
		}
		seen[c] = struct{}{}
		children = append(children, c)
	}
	return &branchEntry{children: children}, nil
}

func parseENR(e string, validSchemes enr.IdentityScheme) (*enrEntry, error) {
	enc, err := b64format.DecodeString(e)
	if err != nil {
		return nil, entryError{"enr", errInvalidENR}
	}
	var rec enr.Record
	if err := rlp.DecodeBytes(enc, &rec); err != nil {
		return nil, entryError{"enr", errInvalidENR}
	}
	n, err := enode.New(validSchemes, &rec)
	if err != nil {
		return nil, entryError{"enr", errInvalidENR}
	}
	return &enrEntry{node: n}, nil
}

// isValidHash reports whether s is a well-formed Base32Hash: exactly 26
// base32(no-pad) characters decoding to a 16-byte value.
func isValidHash(s string) bool {
	if len(s) != base32HashLen || strings.ContainsAny(s, "\n\r") {
		return false
	}
	dec, err := b32format.DecodeString(s)
	return err == nil && len(dec) == 16
}
