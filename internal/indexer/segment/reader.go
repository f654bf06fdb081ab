package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/shardsearch/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
)

// Reader holds an open shard file. Only the header is read on open; the
// dictionary is read by Load.
type Reader struct {
	file     *os.File
	filePath string
	header   Header
}

func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Storage("segment", "opening shard file", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, apperrors.Newf(apperrors.ErrCorruptShard, "segment", "%s: reading header: %v", path, err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		f.Close()
		return nil, apperrors.Newf(apperrors.ErrCorruptShard, "segment", "%s: bad magic bytes %x", path, header.Magic)
	}
	if header.Version != FormatVersion {
		f.Close()
		return nil, apperrors.Newf(apperrors.ErrCorruptShard, "segment", "%s: unsupported version %d", path, header.Version)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperrors.Storage("segment", "stat shard file", err)
	}
	if err := checkLayout(header, info.Size()); err != nil {
		f.Close()
		return nil, apperrors.Newf(apperrors.ErrCorruptShard, "segment", "%s: %v", path, err)
	}
	return &Reader{file: f, filePath: path, header: header}, nil
}

// checkLayout rejects headers whose regions fall outside the file:
// header, postings, dictionary and footer, in that order.
func checkLayout(h Header, size int64) error {
	switch {
	case h.PostOffset < int64(HeaderSize) || h.PostSize < 0:
		return fmt.Errorf("postings region [%d,+%d) out of range", h.PostOffset, h.PostSize)
	case h.DictOffset < h.PostOffset || h.DictSize < 0:
		return fmt.Errorf("dictionary region [%d,+%d) out of range", h.DictOffset, h.DictSize)
	case h.PostSize > h.DictOffset-h.PostOffset:
		return fmt.Errorf("postings region overlaps dictionary")
	case h.DictSize > size-int64(FooterSize)-h.DictOffset:
		return fmt.Errorf("dictionary region ends past %d-byte file", size)
	}
	return nil
}

func (r *Reader) Header() Header {
	return r.header
}

func (r *Reader) Finalized() bool {
	return r.header.Finalized()
}

func (r *Reader) Path() string {
	return r.filePath
}

// Load reads and verifies the term dictionary.
func (r *Reader) Load() (*Table, error) {
	dictBytes := make([]byte, r.header.DictSize)
	if _, err := r.file.ReadAt(dictBytes, r.header.DictOffset); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptShard, "segment", "%s: reading dictionary: %v", r.filePath, err)
	}
	footer := make([]byte, FooterSize)
	if _, err := r.file.ReadAt(footer, r.header.DictOffset+r.header.DictSize); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptShard, "segment", "%s: reading footer: %v", r.filePath, err)
	}
	if want, got := binary.LittleEndian.Uint32(footer[0:4]), crc32.ChecksumIEEE(dictBytes); want != got {
		return nil, apperrors.Newf(apperrors.ErrCorruptShard, "segment", "%s: dictionary checksum mismatch", r.filePath)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptShard, "segment", "%s: parsing dictionary: %v", r.filePath, err)
	}
	return &Table{reader: r, dict: dict}, nil
}

// Entries reads every term and its postings in term order.
func (r *Reader) Entries() ([]index.TermEntry, error) {
	table, err := r.Load()
	if err != nil {
		return nil, err
	}
	entries := make([]index.TermEntry, 0, len(table.dict))
	for _, d := range table.dict {
		postings, err := table.read(d)
		if err != nil {
			return nil, err
		}
		entries = append(entries, index.TermEntry{Term: d.Term, Postings: postings})
	}
	return entries, nil
}

func (r *Reader) Close() error {
	return r.file.Close()
}

// Table is a loaded shard dictionary. Postings are read lazily.
type Table struct {
	reader *Reader
	dict   []DictEntry
}

// Search returns the postings of term, or false when the shard lacks it.
func (t *Table) Search(term string) (index.PostingList, bool, error) {
	idx := sort.Search(len(t.dict), func(i int) bool {
		return t.dict[i].Term >= term
	})
	if idx >= len(t.dict) || t.dict[idx].Term != term {
		return nil, false, nil
	}
	postings, err := t.read(t.dict[idx])
	if err != nil {
		return nil, false, err
	}
	return postings, true, nil
}

func (t *Table) Terms() int {
	return len(t.dict)
}

// DocFreq returns the document frequency recorded for term.
func (t *Table) DocFreq(term string) int {
	idx := sort.Search(len(t.dict), func(i int) bool {
		return t.dict[i].Term >= term
	})
	if idx >= len(t.dict) || t.dict[idx].Term != term {
		return 0
	}
	return t.dict[idx].DocFreq
}

func (t *Table) read(d DictEntry) (index.PostingList, error) {
	if d.PostOffset < 0 || d.PostLen < 0 || int64(d.PostLen) > t.reader.header.PostSize-d.PostOffset {
		return nil, apperrors.Newf(apperrors.ErrCorruptShard, "segment", "%s: postings for %q out of range", t.reader.filePath, d.Term)
	}
	buf := make([]byte, d.PostLen)
	if _, err := t.reader.file.ReadAt(buf, t.reader.header.PostOffset+d.PostOffset); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptShard, "segment", "%s: reading postings for %q: %v", t.reader.filePath, d.Term, err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(buf, &postings); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptShard, "segment", "%s: parsing postings for %q: %v", t.reader.filePath, d.Term, err)
	}
	return postings, nil
}

// ReadAll opens path, reads every entry and closes the file.
func ReadAll(path string) (Header, []index.TermEntry, error) {
	r, err := OpenReader(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer r.Close()
	entries, err := r.Entries()
	if err != nil {
		return Header{}, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return r.header, entries, nil
}
