// Package revision handles the CouchDB revisions of documents, in the form
// "<generation>-<hash>".
package revision

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
)

// Generation returns the number before the hyphen, called the generation of a
// revision.
func Generation(rev string) int {
	parts := strings.SplitN(rev, "-", 2)
	gen, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return gen
}

// Next returns the revision that follows rev for a document with the given
// serialized body. An empty rev gives a first generation revision.
func Next(rev string, body []byte) string {
	h := md5.New()
	h.Write([]byte(rev))
	h.Write(body)
	return strconv.Itoa(Generation(rev)+1) + "-" + hex.EncodeToString(h.Sum(nil))
}

// Valid returns true if rev looks like a revision.
func Valid(rev string) bool {
	gen, hash, ok := strings.Cut(rev, "-")
	if !ok || hash == "" {
		return false
	}
	n, err := strconv.Atoi(gen)
	return err == nil && n > 0
}
