package credentials

import (
	"errors"
	"os"
)

// EnvAWS reads the standard AWS_* environment variables on every Retrieve
// (so a long-lived process observing a credential rotation via env reload
// picks it up without restarting).
type EnvAWS struct{}

func NewEnvAWS() *Credentials { return New(&EnvAWS{}) }

func (e *EnvAWS) Retrieve() (Value, error) {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	if accessKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY")
	}
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if secretKey == "" {
		secretKey = os.Getenv("AWS_SECRET_KEY")
	}
	if accessKey == "" || secretKey == "" {
		return Value{}, errors.New("credentials: AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set")
	}
	return Value{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		SignerType:      SignatureV4,
	}, nil
}

func (e *EnvAWS) IsExpired() bool { return false }

// EnvMinio reads the MinIO-flavored environment variables.
type EnvMinio struct{}

func NewEnvMinio() *Credentials { return New(&EnvMinio{}) }

func (e *EnvMinio) Retrieve() (Value, error) {
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if accessKey == "" || secretKey == "" {
		return Value{}, errors.New("credentials: MINIO_ACCESS_KEY/MINIO_SECRET_KEY not set")
	}
	return Value{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SignerType:      SignatureV4,
	}, nil
}

func (e *EnvMinio) IsExpired() bool { return false }
