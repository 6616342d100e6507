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
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestDomainIsAllowed(t *testing.T) {
	key1, _ := crypto.GenerateKey()
	key2, _ := crypto.GenerateKey()
	link := &linkEntry{domain: "nodes.example.org", pubkey: &key1.PublicKey}

	if !domainIsAllowed(nil, link) {
		t.Error("nil whitelist must allow every domain")
	}
	if domainIsAllowed(Whitelist{}, link) {
		t.Error("empty whitelist must allow nothing")
	}

	wl := Whitelist{"nodes.example.org": &key2.PublicKey}
	if domainIsAllowed(wl, link) {
		t.Error("whitelist entry with mismatched key must not allow the link")
	}

	wl["nodes.example.org"] = &key1.PublicKey
	if !domainIsAllowed(wl, link) {
		t.Error("whitelist entry with matching domain and key must allow the link")
	}
}
