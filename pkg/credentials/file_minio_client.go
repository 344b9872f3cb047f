package credentials

import (
	"errors"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// FileMinioClient reads an alias entry out of the mc (MinIO Client) config
// file, ~/.mc/config.json by default.
type FileMinioClient struct {
	Path  string
	Alias string
}

func NewFileMinioClient(path, alias string) *Credentials {
	return New(&FileMinioClient{Path: path, Alias: alias})
}

type mcConfig struct {
	Version string `json:"version"`
	Aliases map[string]struct {
		URL       string `json:"url"`
		AccessKey string `json:"accessKey"`
		SecretKey string `json:"secretKey"`
		API       string `json:"api"`
	} `json:"aliases"`
}

func (f *FileMinioClient) filePath() (string, error) {
	if f.Path != "" {
		return f.Path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".mc", "config.json"), nil
}

func (f *FileMinioClient) Retrieve() (Value, error) {
	path, err := f.filePath()
	if err != nil {
		return Value{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Value{}, err
	}
	var cfg mcConfig
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &cfg); err != nil {
		return Value{}, err
	}
	alias := f.Alias
	if alias == "" {
		alias = "s3"
	}
	entry, ok := cfg.Aliases[alias]
	if !ok {
		return Value{}, errors.New("credentials: alias " + alias + " not found in mc config")
	}
	return Value{
		AccessKeyID:     entry.AccessKey,
		SecretAccessKey: entry.SecretKey,
		SignerType:      SignatureV4,
	}, nil
}

func (f *FileMinioClient) IsExpired() bool { return false }
