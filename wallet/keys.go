package wallet

import (
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
	"github.com/xchain-go/xchain-utxo/netparams"
)

// DefaultKeyCacheSize is the number of derived keys kept in memory.
const DefaultKeyCacheSize = 64

// ErrInvalidSeed is returned when the wallet seed has an invalid length.
var ErrInvalidSeed = errors.New("invalid seed")

// derivedKey is a key derived from the wallet seed with its P2WPKH address.
type derivedKey struct {
	privKey *btcec.PrivateKey
	address *btcutil.AddressWitnessPubKeyHash
}

// Size returns the cache weight of the key. Every key counts as one entry.
func (k *derivedKey) Size() (uint64, error) {
	return 1, nil
}

// A compile time check to ensure derivedKey can be cached.
var _ cache.Value = (*derivedKey)(nil)

// keyCacheKey identifies a derived key. The same index yields different keys
// on different networks since the coin type is part of the path.
type keyCacheKey struct {
	chain   netparams.Chain
	network netparams.Network
	index   uint32
}

// keyRing derives and caches the BIP-0084 keys of a seed.
type keyRing struct {
	seed     []byte
	capacity uint64

	mu    sync.RWMutex
	cache *lru.Cache[keyCacheKey, *derivedKey]
}

// newKeyRing returns a key ring over seed caching up to capacity keys.
func newKeyRing(seed []byte, capacity uint64) (*keyRing, error) {
	if len(seed) < hdkeychain.MinSeedBytes ||
		len(seed) > hdkeychain.MaxSeedBytes {

		return nil, fmt.Errorf("%w: length %d, must be between %d and "+
			"%d bytes", ErrInvalidSeed, len(seed),
			hdkeychain.MinSeedBytes, hdkeychain.MaxSeedBytes)
	}

	if capacity == 0 {
		capacity = DefaultKeyCacheSize
	}

	seedCopy := make([]byte, len(seed))
	copy(seedCopy, seed)

	return &keyRing{
		seed:     seedCopy,
		capacity: capacity,
		cache:    lru.NewCache[keyCacheKey, *derivedKey](capacity),
	}, nil
}

// key returns the key at index on the network of params, deriving it on a
// cache miss.
func (k *keyRing) key(params *netparams.Params,
	index uint32) (*derivedKey, error) {

	cacheKey := keyCacheKey{
		chain:   params.Chain,
		network: params.Network,
		index:   index,
	}

	k.mu.RLock()
	keys := k.cache
	k.mu.RUnlock()

	if key, err := keys.Get(cacheKey); err == nil {
		return key, nil
	}

	key, err := k.derive(params, index)
	if err != nil {
		return nil, err
	}

	if _, err := keys.Put(cacheKey, key); err != nil {
		log.Warnf("Unable to cache key %s: %v",
			params.DerivationPathString(index), err)
	}

	return key, nil
}

// derive derives the key at index along the BIP-0084 path of params.
func (k *keyRing) derive(params *netparams.Params,
	index uint32) (*derivedKey, error) {

	extKey, err := hdkeychain.NewMaster(k.seed, params.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	for _, child := range params.DerivationPath(index) {
		extKey, err = extKey.Derive(child)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w",
				params.DerivationPathString(index), err)
		}
	}

	privKey, err := extKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w",
			params.DerivationPathString(index), err)
	}

	address, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(privKey.PubKey().SerializeCompressed()),
		params.Params,
	)
	if err != nil {
		return nil, fmt.Errorf("address of %s: %w",
			params.DerivationPathString(index), err)
	}

	log.Tracef("Derived key %s of %v", params.DerivationPathString(index),
		params)

	return &derivedKey{
		privKey: privKey,
		address: address,
	}, nil
}

// reset drops every cached key.
func (k *keyRing) reset() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.cache = lru.NewCache[keyCacheKey, *derivedKey](k.capacity)
}

// cached returns the number of cached keys.
func (k *keyRing) cached() int {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.cache.Len()
}
