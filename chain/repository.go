// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultHexFetchLimit is the default number of concurrent raw
	// transaction lookups performed while scanning.
	DefaultHexFetchLimit = 4
)

// RepositoryOption configures a Repository.
type RepositoryOption func(*Repository)

// WithHexFetchLimit bounds the number of concurrent raw transaction lookups
// issued against an indexer during a scan. Values below one are ignored.
func WithHexFetchLimit(limit int) RepositoryOption {
	return func(r *Repository) {
		if limit > 0 {
			r.hexFetchLimit = limit
		}
	}
}

// Repository scans unspent outputs across an ordered list of indexers. The
// indexers are tried sequentially: the first one that answers wins and the
// following ones are only queried after the previous one fully failed. A
// Repository holds no mutable state and is safe for concurrent use.
type Repository struct {
	indexers      []Indexer
	hexFetchLimit int
}

// NewRepository creates a repository over the given indexers, which are
// queried in the order supplied.
func NewRepository(indexers []Indexer,
	opts ...RepositoryOption) (*Repository, error) {

	if len(indexers) == 0 {
		return nil, ErrNoIndexers
	}

	r := &Repository{
		indexers:      append([]Indexer(nil), indexers...),
		hexFetchLimit: DefaultHexFetchLimit,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Indexers returns the names of the configured indexers in query order.
func (r *Repository) Indexers() []string {
	names := make([]string, 0, len(r.indexers))
	for _, idx := range r.indexers {
		names = append(names, idx.Name())
	}

	return names
}

// Scan returns the unspent outputs of address. When confirmedOnly is set only
// outputs included in a block are returned. When fetchTxHex is set every
// UTXO carries its full source transaction, fetched from the same indexer
// that listed it; a single failed lookup fails that indexer's attempt as a
// whole, so a partially populated list is never returned.
//
// The outputs are returned in the order the indexer reported them.
func (r *Repository) Scan(ctx context.Context, address string, confirmedOnly,
	fetchTxHex bool) ([]UTXO, error) {

	var lastErr error
	for _, idx := range r.indexers {
		utxos, err := r.scanIndexer(
			ctx, idx, address, confirmedOnly, fetchTxHex,
		)
		if err == nil {
			log.Debugf("Scanned %d utxos of %s from %s "+
				"(confirmed_only=%v, tx_hex=%v)", len(utxos),
				address, idx.Name(), confirmedOnly, fetchTxHex)

			return utxos, nil
		}

		// A cancelled context will fail every following indexer as
		// well, so there is no point in trying them.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		log.Warnf("Indexer %s failed to scan %s, trying next: %v",
			idx.Name(), address, err)

		lastErr = fmt.Errorf("%s: %w", idx.Name(), err)
	}

	return nil, fmt.Errorf("%w: %w", ErrIndexerUnavailable, lastErr)
}

// scanIndexer performs a complete scan against a single indexer.
func (r *Repository) scanIndexer(ctx context.Context, idx Indexer,
	address string, confirmedOnly, fetchTxHex bool) ([]UTXO, error) {

	var (
		utxos []UTXO
		err   error
	)
	if confirmedOnly {
		utxos, err = idx.ConfirmedUnspentOutputs(ctx, address)
	} else {
		utxos, err = idx.UnspentOutputs(ctx, address)
	}
	if err != nil {
		return nil, err
	}

	if !fetchTxHex || len(utxos) == 0 {
		return utxos, nil
	}

	// Each goroutine writes to its own slot of a private copy, so the
	// indexer order is kept without further synchronization.
	utxos = append([]UTXO(nil), utxos...)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.hexFetchLimit)

	for i := range utxos {
		g.Go(func() error {
			txHex, err := idx.RawTransactionHex(gctx, utxos[i].Hash)
			if err != nil {
				return fmt.Errorf("fetch tx %s: %w",
					utxos[i].Hash, err)
			}

			utxos[i].RawTxHex = txHex

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return utxos, nil
}

// Balance returns the balance of address from the first indexer that
// answers.
func (r *Repository) Balance(ctx context.Context, address string) (Balance,
	error) {

	var lastErr error
	for _, idx := range r.indexers {
		balance, err := idx.AddressBalance(ctx, address)
		if err == nil {
			return balance, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return Balance{}, ctxErr
		}

		log.Warnf("Indexer %s failed to fetch balance of %s, trying "+
			"next: %v", idx.Name(), address, err)

		lastErr = fmt.Errorf("%s: %w", idx.Name(), err)
	}

	return Balance{}, fmt.Errorf("%w: %w", ErrIndexerUnavailable, lastErr)
}
