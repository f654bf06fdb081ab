// Package segment implements the on-disk shard file: a binary header,
// JSON-encoded postings blocks, a sorted term dictionary and a checksummed
// footer. Files are written to a temporary path and renamed into place.
package segment

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
)

const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 64
	FooterSize    int    = 32
	Extension            = ".shard"
)

// Header flags.
const (
	FlagFinalized uint32 = 1 << 0
)

// Header is the 64-byte little-endian header at the start of every shard.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	DictOffset int64
	DictSize   int64
	PostOffset int64
	PostSize   int64
	Flags      uint32
	CreatedAt  int64
}

func (h Header) Finalized() bool {
	return h.Flags&FlagFinalized != 0
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint32(b[48:52], h.Flags)
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.CreatedAt))
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		DictOffset: int64(binary.LittleEndian.Uint64(b[16:24])),
		DictSize:   int64(binary.LittleEndian.Uint64(b[24:32])),
		PostOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		Flags:      binary.LittleEndian.Uint32(b[48:52]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

// DictEntry maps a term to its postings offset, length, and document frequency
// in the shard file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// Writer serialises term entries into shard files under one directory.
type Writer struct {
	dataDir string
}

func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Path returns the file path of the named shard.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dataDir, name+Extension)
}

// Write replaces the named shard with entries. Entries are stored in ordinal
// term order; an empty entry list yields a valid empty shard.
func (w *Writer) Write(name string, entries []index.TermEntry, flags uint32) (string, error) {
	finalPath := w.Path(name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", apperrors.Storage("segment", "creating shard directory", err)
	}
	if err := writeFile(tmpPath, entries, flags); err != nil {
		os.Remove(tmpPath)
		return "", apperrors.Storage("segment", "writing shard "+name, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", apperrors.Storage("segment", "renaming shard "+name, err)
	}
	return finalPath, nil
}

func writeFile(path string, entries []index.TermEntry, flags uint32) error {
	sorted := make([]index.TermEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Term < sorted[j].Term })

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating temp shard file: %w", err)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)

	header := Header{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(sorted)),
		Flags:     flags,
		CreatedAt: time.Now().Unix(),
	}
	if _, err := bw.Write(header.encode()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	postingsStart := int64(HeaderSize)
	var written int64
	dict := make([]DictEntry, 0, len(sorted))
	docIDs := make(map[int]struct{})
	for _, entry := range sorted {
		postings := entry.Postings
		if postings == nil {
			postings = index.PostingList{}
		}
		postingsData, err := json.Marshal(postings)
		if err != nil {
			return fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if _, err := bw.Write(postingsData); err != nil {
			return fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: written,
			PostLen:    len(postingsData),
			DocFreq:    len(postings),
		})
		written += int64(len(postingsData))
		for _, p := range postings {
			docIDs[p.DocID] = struct{}{}
		}
	}

	dictStart := postingsStart + written
	dictData, err := json.Marshal(dict)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := bw.Write(dictData); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(dictData))
	binary.LittleEndian.PutUint32(footer[4:8], uint32(len(docIDs)))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(dictStart))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(written))
	if _, err := bw.Write(footer); err != nil {
		return fmt.Errorf("writing footer: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing shard file: %w", err)
	}

	header.DocCount = uint32(len(docIDs))
	header.DictOffset = dictStart
	header.DictSize = int64(len(dictData))
	header.PostOffset = postingsStart
	header.PostSize = written
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing shard file: %w", err)
	}
	return f.Close()
}
