package s3lite

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/xml"
	"hash/crc32"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudcentry/s3lite/internal/eventstream"
)

func encodeSelectFrame(headers map[string]string, payload []byte) []byte {
	var headerBlock bytes.Buffer
	for k, v := range headers {
		headerBlock.WriteByte(byte(len(k)))
		headerBlock.WriteString(k)
		headerBlock.WriteByte(7)
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(v)))
		headerBlock.Write(l[:])
		headerBlock.WriteString(v)
	}
	block := append(append([]byte{}, headerBlock.Bytes()...), payload...)

	prelude := make([]byte, 8)
	binary.BigEndian.PutUint32(prelude[0:4], uint32(8+4+len(block)+4))
	binary.BigEndian.PutUint32(prelude[4:8], uint32(headerBlock.Len()))

	preludeCRC := make([]byte, 4)
	binary.BigEndian.PutUint32(preludeCRC, crc32.ChecksumIEEE(prelude))

	sum := crc32.NewIEEE()
	sum.Write(prelude)
	sum.Write(preludeCRC)
	sum.Write(block)
	messageCRC := make([]byte, 4)
	binary.BigEndian.PutUint32(messageCRC, sum.Sum32())

	var out bytes.Buffer
	out.Write(prelude)
	out.Write(preludeCRC)
	out.Write(block)
	out.Write(messageCRC)
	return out.Bytes()
}

const selectCSVRows = "audi,a4,2019\nbmw,320i,2020\nford,focus,2018\nkia,rio,2021\n"

func TestSelectObjectContentStreamsRecords(t *testing.T) {
	var gotRequest selectRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.True(t, r.URL.Query().Has("select"))
		require.Equal(t, "2", r.URL.Query().Get("select-type"))
		require.NoError(t, xml.NewDecoder(r.Body).Decode(&gotRequest))

		w.Write(encodeSelectFrame(map[string]string{
			":message-type": "event", ":event-type": "Records",
		}, []byte(selectCSVRows[:24])))
		w.Write(encodeSelectFrame(map[string]string{
			":message-type": "event", ":event-type": "Records",
		}, []byte(selectCSVRows[24:])))
		w.Write(encodeSelectFrame(map[string]string{
			":message-type": "event", ":event-type": "Stats",
		}, []byte(`<Stats><Details><BytesScanned>100</BytesScanned><BytesProcessed>100</BytesProcessed><BytesReturned>58</BytesReturned></Details></Stats>`)))
		w.Write(encodeSelectFrame(map[string]string{
			":message-type": "event", ":event-type": "End",
		}, nil))
	}))

	var records []byte
	var finalStats eventstream.Stats
	var sawFinal bool
	err := c.SelectObjectContent(context.Background(), "test-42", "cars.csv",
		SelectObjectOptions{
			Expression: "SELECT * FROM S3Object",
			CSVInput:   &CSVInputOptions{FileHeaderInfo: "USE"},
			CSVOutput:  &CSVOutputOptions{},
		},
		func(chunk []byte) bool {
			records = append(records, chunk...)
			return true
		},
		func(stats eventstream.Stats, final bool) {
			if final {
				finalStats = stats
				sawFinal = true
			}
		})
	require.NoError(t, err)
	require.Equal(t, selectCSVRows, string(records))
	require.True(t, sawFinal)
	require.EqualValues(t, 58, finalStats.BytesReturned)

	require.Equal(t, "SELECT * FROM S3Object", gotRequest.Expression)
	require.Equal(t, "SQL", gotRequest.ExpressionType)
	require.NotNil(t, gotRequest.InputSerialization.CSV)
	require.Equal(t, "USE", gotRequest.InputSerialization.CSV.FileHeaderInfo)
}

func TestSelectObjectContentSurfacesServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(encodeSelectFrame(map[string]string{
			":message-type":  "error",
			":error-code":    "InvalidQuery",
			":error-message": "syntax error at line 1",
		}, nil))
	}))

	err := c.SelectObjectContent(context.Background(), "test-42", "cars.csv",
		SelectObjectOptions{Expression: "SELEKT"},
		func([]byte) bool { return true }, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "InvalidQuery")
	require.Contains(t, err.Error(), "syntax error")
}

func TestSelectObjectContentCallbackCancels(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 10; i++ {
			w.Write(encodeSelectFrame(map[string]string{
				":message-type": "event", ":event-type": "Records",
			}, []byte("row\n")))
		}
		w.Write(encodeSelectFrame(map[string]string{
			":message-type": "event", ":event-type": "End",
		}, nil))
	}))

	calls := 0
	err := c.SelectObjectContent(context.Background(), "test-42", "cars.csv",
		SelectObjectOptions{Expression: "SELECT * FROM S3Object"},
		func([]byte) bool {
			calls++
			return false
		}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "returning false must stop decoding after the first record")
}
