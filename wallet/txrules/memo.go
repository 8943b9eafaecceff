package txrules

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// MaxMemoSize is the largest memo, in bytes, that fits in a standard data
// carrier output.
const MaxMemoSize = txscript.MaxDataCarrierSize

var (
	// ErrMemoTooLong is returned when a memo exceeds MaxMemoSize bytes.
	ErrMemoTooLong = errors.New("memo too long")

	// ErrNotMemoScript is returned when decoding a script that is not an
	// OP_RETURN data carrier.
	ErrNotMemoScript = errors.New("script is not a memo output")

	// ErrInvalidMemo is returned when a memo, or the data carried by a
	// memo script, is not valid UTF-8.
	ErrInvalidMemo = errors.New("memo is not valid utf-8")
)

// CompileMemo compiles memo into an OP_RETURN output script carrying its
// UTF-8 bytes. An empty memo yields no script.
func CompileMemo(memo string) (fn.Option[[]byte], error) {
	if memo == "" {
		return fn.None[[]byte](), nil
	}

	if !utf8.ValidString(memo) {
		return fn.None[[]byte](), ErrInvalidMemo
	}

	if len(memo) > MaxMemoSize {
		return fn.None[[]byte](), fmt.Errorf("%w: %d bytes, max %d",
			ErrMemoTooLong, len(memo), MaxMemoSize)
	}

	// The script builder encodes a lone zero byte as OP_0, which carries
	// no data, so it is pushed explicitly.
	if memo == "\x00" {
		return fn.Some([]byte{
			txscript.OP_RETURN, txscript.OP_DATA_1, 0x00,
		}), nil
	}

	script, err := txscript.NullDataScript([]byte(memo))
	if err != nil {
		return fn.None[[]byte](), fmt.Errorf("compile memo: %w", err)
	}

	return fn.Some(script), nil
}

// IsMemoScript returns true if script is an OP_RETURN data carrier.
func IsMemoScript(script []byte) bool {
	return txscript.GetScriptClass(script) == txscript.NullDataTy
}

// DecodeMemo returns the memo carried by an OP_RETURN script produced by
// CompileMemo.
func DecodeMemo(script []byte) (string, error) {
	if !IsMemoScript(script) {
		return "", ErrNotMemoScript
	}

	tokenizer := txscript.MakeScriptTokenizer(0, script)

	// The first opcode is the OP_RETURN itself.
	tokenizer.Next()

	var data []byte
	if tokenizer.Next() {
		op := tokenizer.Opcode()
		switch {
		// Single byte pushes of 1 to 16 are encoded as small integer
		// opcodes.
		case op >= txscript.OP_1 && op <= txscript.OP_16:
			data = []byte{op - (txscript.OP_1 - 1)}

		case op == txscript.OP_1NEGATE:
			data = []byte{0x81}

		default:
			data = tokenizer.Data()
		}
	}
	if err := tokenizer.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotMemoScript, err)
	}

	if !utf8.Valid(data) {
		return "", ErrInvalidMemo
	}

	return string(data), nil
}
