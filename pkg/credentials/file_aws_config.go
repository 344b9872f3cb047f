package credentials

import (
	"errors"
	"os"
	"path/filepath"

	ini "github.com/go-ini/ini"
)

// FileAWSConfig reads a profile section out of an AWS-style shared
// credentials INI file (~/.aws/credentials by default).
type FileAWSConfig struct {
	Path    string
	Profile string
}

func NewFileAWSConfig(path, profile string) *Credentials {
	return New(&FileAWSConfig{Path: path, Profile: profile})
}

func (f *FileAWSConfig) filePath() (string, error) {
	if f.Path != "" {
		return f.Path, nil
	}
	if p := os.Getenv("AWS_SHARED_CREDENTIALS_FILE"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".aws", "credentials"), nil
}

func (f *FileAWSConfig) profile() string {
	if f.Profile != "" {
		return f.Profile
	}
	if p := os.Getenv("AWS_PROFILE"); p != "" {
		return p
	}
	return "default"
}

func (f *FileAWSConfig) Retrieve() (Value, error) {
	path, err := f.filePath()
	if err != nil {
		return Value{}, err
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return Value{}, err
	}
	section, err := cfg.GetSection(f.profile())
	if err != nil {
		return Value{}, err
	}
	accessKey := section.Key("aws_access_key_id").String()
	secretKey := section.Key("aws_secret_access_key").String()
	if accessKey == "" || secretKey == "" {
		return Value{}, errors.New("credentials: profile " + f.profile() + " missing access/secret key")
	}
	return Value{
		AccessKeyID:     accessKey,
		SecretAccessKey: secretKey,
		SessionToken:    section.Key("aws_session_token").String(),
		SignerType:      SignatureV4,
	}, nil
}

func (f *FileAWSConfig) IsExpired() bool { return false }
