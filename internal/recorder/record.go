package recorder

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"feedstate/internal/adapter"
	"feedstate/internal/analytics"
)

const (
	recordVersion      uint16 = 1
	recordHeaderSize          = 24
	recordChecksumSize        = 4
	maxPayloadLen             = uint64(^uint32(0))
)

var (
	recordMagic = [4]byte{'B', 'B', 'A', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic            = errors.New("record invalid magic")
	ErrUnsupportedRecordVer    = errors.New("record unsupported version")
	ErrInvalidRecordHeaderSize = errors.New("record invalid header size")
	ErrPayloadTooLarge         = errors.New("record payload too large")
	ErrChecksumMismatch        = errors.New("record checksum mismatch")
)

// Record is one exported BBA sample of one book.
type Record struct {
	BatchID   string          `json:"batchId"`
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	BestBid   decimal.Decimal `json:"bestBid"`
	BestAsk   decimal.Decimal `json:"bestAsk"`
	Midprice  decimal.Decimal `json:"midprice"`
}

func NewRecord(batchID string, key adapter.BookKey, s analytics.Sample) Record {
	return Record{
		BatchID:   batchID,
		Exchange:  key.Exchange.String(),
		Symbol:    key.Symbol.String(),
		Timestamp: s.Timestamp,
		BestBid:   s.BestBid,
		BestAsk:   s.BestAsk,
		Midprice:  s.Midprice,
	}
}

// Key identifies the book a record belongs to.
func (r Record) Key() string {
	return r.Exchange + ":" + r.Symbol
}

// Frame layout, little endian:
//
//	magic[4] version[2] headerSize[2] payloadLen[4] reserved[4] tsUnixNano[8] payload checksum[4]
func encodeHeader(dst []byte, ts time.Time, payloadLen int) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordHeaderSize))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(payloadLen))
	binary.LittleEndian.PutUint32(dst[12:16], 0)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(ts.UnixNano()))
}

func checksum(header []byte, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, payload)
}

func decodeRecordHeader(src []byte) (uint32, error) {
	if len(src) < recordHeaderSize {
		return 0, ErrInvalidRecordHeaderSize
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return 0, ErrInvalidMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != recordVersion {
		return 0, ErrUnsupportedRecordVer
	}
	if headerSize := binary.LittleEndian.Uint16(src[6:8]); headerSize != recordHeaderSize {
		return 0, ErrInvalidRecordHeaderSize
	}
	return binary.LittleEndian.Uint32(src[8:12]), nil
}

func marshalRecord(r Record) ([]byte, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "marshal record")
	}
	if uint64(len(payload)) > maxPayloadLen {
		return nil, ErrPayloadTooLarge
	}
	return payload, nil
}
