package pattern

import (
	"crypto/sha256"
	"math/big"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// digitsOnly strips everything but ASCII digits.
func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// sameSeparators accepts a grouped number only when it has no separators or
// uses the same one everywhere ("123-45-6789", "123456789", not "123-45 6789").
func sameSeparators(s string) bool {
	var sep byte
	seps := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if seps > 0 && c != sep {
			return false
		}
		sep = c
		seps++
	}
	return seps == 0 || seps == 2
}

func allSame(d string) bool {
	return strings.Count(d, d[:1]) == len(d)
}

var invalidSSNs = map[string]bool{
	"078051120": true, // Woolworth wallet card
	"219099999": true, // Social Security Administration advertisement
	"123456789": true,
}

// validSSN applies the SSA allocation rules: no 000, 666 or 9xx area,
// no 00 group, no 0000 serial.
func validSSN(s string) bool {
	if !sameSeparators(s) {
		return false
	}
	d := digitsOnly(s)
	if len(d) != 9 || allSame(d) || invalidSSNs[d] {
		return false
	}
	area, group, serial := d[:3], d[3:5], d[5:]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	return group != "00" && serial != "0000"
}

// luhn reports whether the digit string d passes the Luhn checksum.
func luhn(d string) bool {
	sum := 0
	double := false
	for i := len(d) - 1; i >= 0; i-- {
		n := int(d[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

func validCard(s string) bool {
	d := digitsOnly(s)
	if len(d) < 13 || len(d) > 19 || allSame(d) {
		return false
	}
	return luhn(d)
}

// validIBAN checks the ISO 13616 mod-97 checksum.
func validIBAN(s string) bool {
	iban := strings.ReplaceAll(s, " ", "")
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	rem := 0
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		switch {
		case c >= '0' && c <= '9':
			rem = (rem*10 + int(c-'0')) % 97
		case c >= 'A' && c <= 'Z':
			v := int(c-'A') + 10
			rem = (rem*100 + v) % 97
		default:
			return false
		}
	}
	return rem == 1
}

func validIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4()
}

func validIPv6(s string) bool {
	if !strings.ContainsAny(s, "0123456789abcdefABCDEF") {
		return false
	}
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is6()
}

// validNHS checks the NHS number modulus 11 check digit.
func validNHS(s string) bool {
	if !sameSeparators(s) {
		return false
	}
	d := digitsOnly(s)
	if len(d) != 10 || allSame(d) {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(d[i]-'0') * (10 - i)
	}
	check := 11 - sum%11
	if check == 11 {
		check = 0
	}
	return check != 10 && check == int(d[9]-'0')
}

// validDEA checks the DEA registration number check digit.
func validDEA(s string) bool {
	d := s[2:]
	if len(d) != 7 {
		return false
	}
	n := func(i int) int { return int(d[i] - '0') }
	sum := n(0) + n(2) + n(4) + 2*(n(1)+n(3)+n(5))
	return sum%10 == n(6)
}

func validISODate(s string) bool {
	if len(s) < 10 {
		return false
	}
	if _, err := time.Parse("2006-01-02", s[:10]); err != nil {
		return false
	}
	if len(s) == 10 {
		return true
	}
	clock := s[11:]
	layout := "15:04"
	if len(clock) > 5 {
		layout = "15:04:05"
	}
	_, err := time.Parse(layout, clock)
	return err == nil
}

// validNumericDate accepts m/d/y and d/m/y with a consistent separator.
func validNumericDate(s string) bool {
	sep := s[strings.IndexAny(s, "/.-")]
	parts := strings.Split(s, string(sep))
	if len(parts) != 3 {
		return false
	}
	a, err1 := strconv.Atoi(parts[0])
	b, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false
	}
	month := func(v int) bool { return v >= 1 && v <= 12 }
	day := func(v int) bool { return v >= 1 && v <= 31 }
	return (month(a) && day(b)) || (day(a) && month(b))
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// validBitcoin verifies a legacy base58check (P2PKH/P2SH) or a bech32/bech32m
// segwit address.
func validBitcoin(s string) bool {
	if strings.HasPrefix(s, "bc1") {
		return validBech32("bc", s[3:])
	}
	return validBase58Check(s)
}

func validBase58Check(s string) bool {
	n := new(big.Int)
	radix := big.NewInt(58)
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(base58Alphabet, s[i])
		if idx < 0 {
			return false
		}
		n.Mul(n, radix)
		n.Add(n, big.NewInt(int64(idx)))
	}
	raw := n.Bytes()
	for i := 0; i < len(s) && s[i] == '1'; i++ {
		raw = append([]byte{0}, raw...)
	}
	if len(raw) != 25 {
		return false
	}
	first := sha256.Sum256(raw[:21])
	second := sha256.Sum256(first[:])
	for i := 0; i < 4; i++ {
		if second[i] != raw[21+i] {
			return false
		}
	}
	return true
}

const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

func bech32Polymod(values []int) int {
	gen := [5]int{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := 1
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ v
		for i := 0; i < 5; i++ {
			if (top>>i)&1 == 1 {
				chk ^= gen[i]
			}
		}
	}
	return chk
}

// validBech32 checks data (the part after "<hrp>1") against both the
// bech32 and bech32m constants.
func validBech32(hrp, data string) bool {
	values := make([]int, 0, len(hrp)*2+1+len(data))
	for i := 0; i < len(hrp); i++ {
		values = append(values, int(hrp[i])>>5)
	}
	values = append(values, 0)
	for i := 0; i < len(hrp); i++ {
		values = append(values, int(hrp[i])&31)
	}
	for i := 0; i < len(data); i++ {
		idx := strings.IndexByte(bech32Charset, data[i])
		if idx < 0 {
			return false
		}
		values = append(values, idx)
	}
	pm := bech32Polymod(values)
	return pm == 1 || pm == 0x2bc830a3
}
