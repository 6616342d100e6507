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
	"errors"
	"fmt"
	"net"
)

// Backend abstracts the lookup of a single DNS TXT record. The resolver
// never talks to the network directly; every fqdn it needs comes through a
// Backend so the walker can be driven from a fixed in-memory tree in tests
// and from real DNS in production without any change to the walking logic.
type Backend interface {
	// GetRecord returns the TXT record value published at fqdn, or an error
	// if the lookup failed or no record exists there.
	GetRecord(ctx context.Context, fqdn string) (string, error)
}

// MapBackend serves records from a fixed in-memory map, keyed by fqdn. It
// never touches the network and is used by tests and by callers that
// already have the tree contents on hand.
type MapBackend map[string]string

func (m MapBackend) GetRecord(ctx context.Context, fqdn string) (string, error) {
	if v, ok := m[fqdn]; ok {
		return v, nil
	}
	return "", nameError{fqdn, errNoRecord}
}

// DNSBackend resolves TXT records through a real DNS resolver. The zero
// value uses net.DefaultResolver.
type DNSBackend struct {
	Resolver *net.Resolver
}

func (d DNSBackend) resolver() *net.Resolver {
	if d.Resolver != nil {
		return d.Resolver
	}
	return net.DefaultResolver
}

func (d DNSBackend) GetRecord(ctx context.Context, fqdn string) (string, error) {
	txts, err := d.resolver().LookupTXT(ctx, fqdn)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && (dnsErr.IsNotFound) {
			return "", nameError{fqdn, errNoRecord}
		}
		return "", nameError{fqdn, err}
	}
	// enrtree records are never split across multiple TXT strings in this
	// scheme; join defensively in case a resolver hands back segments from a
	// single long record.
	if len(txts) == 0 {
		return "", nameError{fqdn, errNoRecord}
	}
	if len(txts) == 1 {
		return txts[0], nil
	}
	joined := ""
	for _, t := range txts {
		joined += t
	}
	return joined, nil
}

var errNoRecord = fmt.Errorf("no TXT record found")

// nameError reports a failure resolving a specific fqdn, independent of
// whether the failure was a transport error or a codec error once the
// record text came back.
type nameError struct {
	name string
	err  error
}

func (e nameError) Error() string { return fmt.Sprintf("%s: %v", e.name, e.err) }
func (e nameError) Unwrap() error { return e.err }
