package s3lite

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"net/url"

	"github.com/cloudcentry/s3lite/internal/eventstream"
	"github.com/cloudcentry/s3lite/pkg/s3utils"
)

// CSVInputOptions/CSVOutputOptions/JSONInputOptions/JSONOutputOptions
// describe the serialization the SELECT engine should read/write; nil
// means "not this format" in SelectObjectOptions.
type CSVInputOptions struct {
	FileHeaderInfo string // NONE | USE | IGNORE
	RecordDelimiter string
	FieldDelimiter  string
	QuoteCharacter  string
	Comments        string
}

type CSVOutputOptions struct {
	RecordDelimiter string
	FieldDelimiter  string
	QuoteCharacter  string
}

type JSONInputOptions struct {
	Type string // DOCUMENT | LINES
}

type JSONOutputOptions struct {
	RecordDelimiter string
}

// SelectObjectOptions configures SelectObjectContent. Exactly one of CSVInput
// or JSONInput should be set to describe the input serialization, and one
// of CSVOutput/JSONOutput for the output.
type SelectObjectOptions struct {
	Expression     string
	ExpressionType string // always "SQL" today

	CSVInput  *CSVInputOptions
	JSONInput *JSONInputOptions

	CSVOutput  *CSVOutputOptions
	JSONOutput *JSONOutputOptions

	CompressionType string // NONE | GZIP | BZIP2
}

type selectRequest struct {
	XMLName            xml.Name `xml:"SelectObjectContentRequest"`
	Expression         string   `xml:"Expression"`
	ExpressionType     string   `xml:"ExpressionType"`
	InputSerialization struct {
		CompressionType string             `xml:"CompressionType,omitempty"`
		CSV             *csvInputXML       `xml:"CSV,omitempty"`
		JSON            *jsonInputXML      `xml:"JSON,omitempty"`
	} `xml:"InputSerialization"`
	OutputSerialization struct {
		CSV  *csvOutputXML  `xml:"CSV,omitempty"`
		JSON *jsonOutputXML `xml:"JSON,omitempty"`
	} `xml:"OutputSerialization"`
}

type csvInputXML struct {
	FileHeaderInfo  string `xml:"FileHeaderInfo,omitempty"`
	RecordDelimiter string `xml:"RecordDelimiter,omitempty"`
	FieldDelimiter  string `xml:"FieldDelimiter,omitempty"`
	QuoteCharacter  string `xml:"QuoteCharacter,omitempty"`
	Comments        string `xml:"Comments,omitempty"`
}

type jsonInputXML struct {
	Type string `xml:"Type,omitempty"`
}

type csvOutputXML struct {
	RecordDelimiter string `xml:"RecordDelimiter,omitempty"`
	FieldDelimiter  string `xml:"FieldDelimiter,omitempty"`
	QuoteCharacter  string `xml:"QuoteCharacter,omitempty"`
}

type jsonOutputXML struct {
	RecordDelimiter string `xml:"RecordDelimiter,omitempty"`
}

func (o SelectObjectOptions) body() ([]byte, error) {
	req := selectRequest{Expression: o.Expression, ExpressionType: o.ExpressionType}
	if req.ExpressionType == "" {
		req.ExpressionType = "SQL"
	}
	req.InputSerialization.CompressionType = o.CompressionType
	if o.CSVInput != nil {
		req.InputSerialization.CSV = &csvInputXML{
			FileHeaderInfo:  o.CSVInput.FileHeaderInfo,
			RecordDelimiter: o.CSVInput.RecordDelimiter,
			FieldDelimiter:  o.CSVInput.FieldDelimiter,
			QuoteCharacter:  o.CSVInput.QuoteCharacter,
			Comments:        o.CSVInput.Comments,
		}
	}
	if o.JSONInput != nil {
		req.InputSerialization.JSON = &jsonInputXML{Type: o.JSONInput.Type}
	}
	if o.CSVOutput != nil {
		req.OutputSerialization.CSV = &csvOutputXML{
			RecordDelimiter: o.CSVOutput.RecordDelimiter,
			FieldDelimiter:  o.CSVOutput.FieldDelimiter,
			QuoteCharacter:  o.CSVOutput.QuoteCharacter,
		}
	}
	if o.JSONOutput != nil {
		req.OutputSerialization.JSON = &jsonOutputXML{RecordDelimiter: o.JSONOutput.RecordDelimiter}
	}
	return xml.Marshal(req)
}

// SelectRecordsFunc receives successive raw record-payload chunks from a
// SelectObjectContent response, in order. Returning false stops decoding
// early, the same cancellation contract GetObject's DataFunc uses.
type SelectRecordsFunc func(records []byte) bool

// SelectProgressFunc optionally receives Progress/Stats events interleaved
// with records.
type SelectProgressFunc func(stats eventstream.Stats, final bool)

// SelectObjectContent runs an S3 Select SQL expression against
// bucketName/objectName and streams the query's output records to fn via
// the event-stream decoder in internal/eventstream. progress, if non-nil,
// is invoked for Progress events (final=false) and the terminal Stats
// event (final=true).
func (c *Client) SelectObjectContent(ctx context.Context, bucketName, objectName string, opts SelectObjectOptions, fn SelectRecordsFunc, progress SelectProgressFunc) error {
	if err := s3utils.CheckValidBucketName(bucketName); err != nil {
		return err
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return err
	}

	body, err := opts.body()
	if err != nil {
		return err
	}

	query := url.Values{}
	query.Set("select", "")
	query.Set("select-type", "2")

	resp, err := c.executeMethod(ctx, http.MethodPost, requestInput{
		bucketName:       bucketName,
		objectName:       objectName,
		queryValues:      query,
		contentBody:      bytes.NewReader(body),
		contentLength:    int64(len(body)),
		contentMD5Base64: md5Base64(body),
		contentSHA256Hex: sha256Hex(body),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return eventstream.Decode(resp.Body, func(ev eventstream.Event) bool {
		switch ev.Type {
		case eventstream.EventRecords:
			return fn(ev.Records)
		case eventstream.EventProgress:
			if progress != nil {
				progress(ev.Stats, false)
			}
			return true
		case eventstream.EventStats:
			if progress != nil {
				progress(ev.Stats, true)
			}
			return true
		default:
			return true
		}
	})
}
