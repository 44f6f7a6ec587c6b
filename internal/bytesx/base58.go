// Package bytesx provides the low-level byte primitives the blockchain core
// needs and that are not covered by the standard library: base58 encoding
// for addresses.
package bytesx

import "math/big"

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Base58Encode encodes b using the Bitcoin base58 alphabet, preserving
// leading zero bytes as leading '1' characters.
func Base58Encode(b []byte) string {
	x := new(big.Int).SetBytes(b)

	radix := big.NewInt(58)
	zero := big.NewInt(0)
	mod := new(big.Int)

	var out []byte
	for x.Cmp(zero) > 0 {
		x.DivMod(x, radix, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}

	for _, c := range b {
		if c != 0 {
			break
		}
		out = append(out, base58Alphabet[0])
	}

	reverse(out)
	return string(out)
}

// Base58Decode decodes a base58 string produced by Base58Encode.
func Base58Decode(s string) []byte {
	x := big.NewInt(0)
	radix := big.NewInt(58)

	for _, r := range s {
		idx := indexOf(base58Alphabet, byte(r))
		if idx < 0 {
			return nil
		}
		x.Mul(x, radix)
		x.Add(x, big.NewInt(int64(idx)))
	}

	decoded := x.Bytes()

	var leading []byte
	for _, r := range s {
		if r != rune(base58Alphabet[0]) {
			break
		}
		leading = append(leading, 0)
	}

	return append(leading, decoded...)
}

func indexOf(alphabet string, c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
