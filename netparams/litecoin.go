package netparams

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// litecoinMainNetParams and litecoinTestNetParams carry the litecoin address
// and key encodings. Only the fields used for address handling and key
// serialization differ from the bitcoin parameters they are derived from;
// consensus fields are never consulted by the wallet clients.
var (
	litecoinMainNetParams = litecoinParams(
		chaincfg.MainNetParams, "litecoin-mainnet", 0xdbb6c0fb, "9333",
		0x30, 0x32, 0xb0, "ltc",
		[4]byte{0x01, 0x9d, 0x9c, 0xfe}, [4]byte{0x01, 0x9d, 0xa4, 0x62},
		2,
	)

	litecoinTestNetParams = litecoinParams(
		chaincfg.TestNet3Params, "litecoin-testnet", 0xf1c8d2fd, "19335",
		0x6f, 0x3a, 0xef, "tltc",
		[4]byte{0x04, 0x36, 0xef, 0x7d}, [4]byte{0x04, 0x36, 0xf6, 0xe1},
		1,
	)
)

// litecoinParams copies base and overrides the encoding fields.
func litecoinParams(base chaincfg.Params, name string, magic uint32,
	port string, pubKeyHashID, scriptHashID, wifID byte, hrp string,
	hdPrivID, hdPubID [4]byte, coinType uint32) chaincfg.Params {

	params := base
	params.Name = name
	params.Net = wire.BitcoinNet(magic)
	params.DefaultPort = port
	params.DNSSeeds = nil
	params.Checkpoints = nil
	params.PubKeyHashAddrID = pubKeyHashID
	params.ScriptHashAddrID = scriptHashID
	params.PrivateKeyID = wifID
	params.Bech32HRPSegwit = hrp
	params.HDPrivateKeyID = hdPrivID
	params.HDPublicKeyID = hdPubID
	params.HDCoinType = coinType

	return params
}

// mustRegister registers the given chain parameters with chaincfg so that
// btcutil recognizes their bech32 prefixes. It panics on a duplicate
// registration.
func mustRegister(params *chaincfg.Params) {
	if err := chaincfg.Register(params); err != nil {
		panic("failed to register network " + params.Name + ": " +
			err.Error())
	}
}

func init() {
	mustRegister(&litecoinMainNetParams)
	mustRegister(&litecoinTestNetParams)
}
