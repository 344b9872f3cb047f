package s3lite

import (
	"golang.org/x/net/http/httpguts"

	"github.com/sirupsen/logrus"
)

// httpTokenValid and httpFieldValueValid back PutObjectOptions' user
// metadata validation, grounded on the same httpguts package the oss-go-sdk
// fork uses for its PutObjectOptions.validate.
func httpTokenValid(s string) bool      { return httpguts.ValidHeaderFieldName(s) }
func httpFieldValueValid(s string) bool { return httpguts.ValidHeaderFieldValue(s) }

func logFieldsAbort(bucketName, objectName, uploadID string) logrus.Fields {
	return logrus.Fields{
		"bucket":    bucketName,
		"object":    objectName,
		"upload_id": uploadID,
	}
}
