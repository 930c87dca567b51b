package payu

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

func sha512Hex(parts ...string) string {
	sum := sha512.Sum512([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// RequestHash signs the checkout form:
// key|txnid|amount|productinfo|firstname|email|udf1|udf2|udf3|udf4|udf5||||||salt
func RequestHash(salt string, f map[string]string) string {
	return sha512Hex(
		f["key"], f["txnid"], f["amount"], f["productinfo"], f["firstname"], f["email"],
		f["udf1"], f["udf2"], f["udf3"], f["udf4"], f["udf5"],
		"", "", "", "", "",
		salt,
	)
}

// ResponseHash is the reverse hash PayU sends back with every response:
// [additionalCharges|]salt|status||||||udf5|udf4|udf3|udf2|udf1|email|firstname|productinfo|amount|txnid|key
func ResponseHash(salt string, f map[string]string) string {
	parts := []string{
		salt, f["status"],
		"", "", "", "", "",
		f["udf5"], f["udf4"], f["udf3"], f["udf2"], f["udf1"],
		f["email"], f["firstname"], f["productinfo"], f["amount"], f["txnid"], f["key"],
	}
	if charges := f["additionalCharges"]; charges != "" {
		parts = append([]string{charges}, parts...)
	}
	return sha512Hex(parts...)
}

func verifyHash(key, command, var1, salt string) string {
	return sha512Hex(key, command, var1, salt)
}
