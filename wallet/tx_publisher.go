// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/xchain-go/xchain-utxo/chain"
)

// ErrInvalidTx is returned when a raw transaction handed to the publisher
// cannot be decoded.
var ErrInvalidTx = errors.New("invalid raw transaction")

// TxPublisher provides an interface for publishing transactions.
type TxPublisher interface {
	// Broadcast submits a hex encoded signed transaction to the network
	// and returns its id.
	Broadcast(ctx context.Context, rawTxHex string) (string, error)

	// PublishTx submits a signed transaction to the network and returns
	// its id.
	PublishTx(ctx context.Context, tx *wire.MsgTx) (string, error)
}

// A compile time check to ensure that Publisher implements the interface.
var _ TxPublisher = (*Publisher)(nil)

// Publisher sanity checks signed transactions before handing them to a
// chain.Broadcaster.
type Publisher struct {
	broadcaster chain.Broadcaster
}

// NewPublisher returns a Publisher that submits through broadcaster.
func NewPublisher(broadcaster chain.Broadcaster) *Publisher {
	return &Publisher{broadcaster: broadcaster}
}

// Broadcast decodes the raw transaction and submits it. Rejections by the
// network are returned as chain.ErrBroadcastFailed carrying the endpoint's
// message.
func (p *Publisher) Broadcast(ctx context.Context,
	rawTxHex string) (string, error) {

	rawTxHex = strings.TrimSpace(rawTxHex)

	rawTx, err := hex.DecodeString(rawTxHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}

	return p.publish(ctx, tx, rawTxHex)
}

// PublishTx serializes the transaction and submits it.
func (p *Publisher) PublishTx(ctx context.Context,
	tx *wire.MsgTx) (string, error) {

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}

	return p.publish(ctx, tx, hex.EncodeToString(buf.Bytes()))
}

// publish submits the encoded transaction and compares the returned id with
// the local one.
func (p *Publisher) publish(ctx context.Context, tx *wire.MsgTx,
	rawTxHex string) (string, error) {

	txHash := tx.TxHash()

	log.Debugf("Broadcasting tx %v: %v", txHash, newLogClosure(
		func() string {
			return spew.Sdump(tx)
		}),
	)

	txid, err := p.broadcaster.Broadcast(ctx, rawTxHex)
	if err != nil {
		log.Errorf("%v: broadcast failed: %v", txHash, err)
		return "", err
	}

	if txid != txHash.String() {
		log.Warnf("Broadcast of tx %v returned txid %v", txHash, txid)
	}

	log.Infof("Published tx %v", txid)

	return txid, nil
}
