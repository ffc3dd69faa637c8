package badger

import (
	"encoding/binary"
	"strings"
)

// Database Key Namespace Design
// ==============================
//
// Every path below is a clean absolute path. Paths never contain NUL, so NUL
// separates a path from the suffix of composite keys and a prefix scan over
// "<ns><path>\x00" only ever matches that path.
//
// Data Type       Prefix   Key Format                     Value
// ==================================================================
// Entry           "e:"     e:<path>                       entry (JSON)
// Child index     "d:"     d:<parent>\x00<name>           empty
// Content chunk   "c:"     c:<path>\x00<seq uint64 BE>    raw bytes
//
// Child index keys sort by name, so a directory listing is a single prefix
// scan returning names in lexical order. Chunk keys sort by sequence number,
// so reading a file is a prefix scan in write order.
const (
	prefixEntry = "e:"
	prefixChild = "d:"
	prefixChunk = "c:"
	separator   = "\x00"
)

func entryKey(p string) []byte {
	return []byte(prefixEntry + p)
}

func childPrefix(dir string) []byte {
	return []byte(prefixChild + dir + separator)
}

func childKey(dir, name string) []byte {
	return []byte(prefixChild + dir + separator + name)
}

// childName extracts the name from a child index key.
func childName(key []byte) string {
	k := string(key)
	return k[strings.Index(k, separator)+1:]
}

func chunkPrefix(p string) []byte {
	return []byte(prefixChunk + p + separator)
}

func chunkKey(p string, seq uint64) []byte {
	key := chunkPrefix(p)
	return binary.BigEndian.AppendUint64(key, seq)
}
