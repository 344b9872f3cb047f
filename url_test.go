package s3lite

import (
	"net/url"
	"testing"
)

func mustBaseURL(t *testing.T, scheme, host, region string) *BaseURL {
	t.Helper()
	b, err := NewBaseURL(scheme, host, region)
	if err != nil {
		t.Fatalf("NewBaseURL(%s, %s, %s): %v", scheme, host, region, err)
	}
	return b
}

func TestNewBaseURLClassification(t *testing.T) {
	tests := []struct {
		host                                     string
		aws, fips, accelerate, dualstack, virtual bool
	}{
		{"s3.amazonaws.com", true, false, false, false, false},
		{"s3.us-west-2.amazonaws.com", true, false, false, false, false},
		{"s3-accelerate.amazonaws.com", true, false, true, false, false},
		{"s3.dualstack.us-east-1.amazonaws.com", true, false, false, true, false},
		{"s3-fips.us-east-1.amazonaws.com", true, true, false, false, false},
		{"play.min.io", false, false, false, false, false},
		{"oss-cn-hangzhou.aliyuncs.com", false, false, false, false, true},
	}
	for _, tt := range tests {
		b := mustBaseURL(t, "https", tt.host, "")
		if b.IsAWSHost != tt.aws || b.IsFIPSHost != tt.fips || b.IsAccelerateHost != tt.accelerate || b.IsDualstackHost != tt.dualstack || b.IsVirtualStyle != tt.virtual {
			t.Errorf("%s: got aws=%v fips=%v accelerate=%v dualstack=%v virtual=%v",
				tt.host, b.IsAWSHost, b.IsFIPSHost, b.IsAccelerateHost, b.IsDualstackHost, b.IsVirtualStyle)
		}
	}
}

func TestNewBaseURLChinaRequiresRegion(t *testing.T) {
	if _, err := NewBaseURL("https", "s3.cn-north-1.amazonaws.com.cn", ""); err == nil {
		t.Fatal("expected error for cn endpoint without region")
	}
	if _, err := NewBaseURL("https", "s3.cn-north-1.amazonaws.com.cn", "cn-north-1"); err != nil {
		t.Fatalf("unexpected error with region set: %v", err)
	}
}

func TestBuildURLStyles(t *testing.T) {
	tests := []struct {
		name           string
		base           *BaseURL
		bucket, object string
		forcePathStyle bool
		wantHost       string
		wantPath       string
	}{
		{
			name: "virtual host style on AWS",
			base: mustBaseURL(t, "https", "s3.amazonaws.com", "us-east-1"),
			bucket: "mybucket", object: "key",
			wantHost: "mybucket.s3.us-east-1.amazonaws.com",
			wantPath: "/key",
		},
		{
			name: "dotted bucket falls back to path style on https",
			base: mustBaseURL(t, "https", "s3.amazonaws.com", "us-east-1"),
			bucket: "my.bucket", object: "key",
			wantHost: "s3.us-east-1.amazonaws.com",
			wantPath: "/my.bucket/key",
		},
		{
			name: "dotted bucket keeps virtual style on plain http",
			base: mustBaseURL(t, "http", "s3.amazonaws.com", "us-east-1"),
			bucket: "my.bucket", object: "key",
			wantHost: "my.bucket.s3.us-east-1.amazonaws.com",
			wantPath: "/key",
		},
		{
			name:           "bucket creation forces path style",
			base:           mustBaseURL(t, "https", "s3.amazonaws.com", "us-east-1"),
			bucket:         "newbucket",
			forcePathStyle: true,
			wantHost:       "s3.us-east-1.amazonaws.com",
			wantPath:       "/newbucket",
		},
		{
			name: "non-AWS host always path style",
			base: mustBaseURL(t, "https", "play.min.io", ""),
			bucket: "mybucket", object: "key",
			wantHost: "play.min.io",
			wantPath: "/mybucket/key",
		},
		{
			name: "dualstack infix preserved",
			base: mustBaseURL(t, "https", "s3.dualstack.us-east-1.amazonaws.com", "us-east-1"),
			bucket: "mybucket", object: "key",
			wantHost: "mybucket.s3.dualstack.us-east-1.amazonaws.com",
			wantPath: "/key",
		},
		{
			name: "accelerate endpoint drops region",
			base: mustBaseURL(t, "https", "s3-accelerate.amazonaws.com", "us-east-1"),
			bucket: "mybucket", object: "key",
			wantHost: "mybucket.s3-accelerate.amazonaws.com",
			wantPath: "/key",
		},
		{
			name: "fips endpoint host is never region-substituted",
			base: mustBaseURL(t, "https", "s3-fips.us-east-1.amazonaws.com", "us-east-1"),
			bucket: "mybucket", object: "key",
			wantHost: "mybucket.s3-fips.us-east-1.amazonaws.com",
			wantPath: "/key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := buildURL(tt.base, tt.bucket, tt.object, nil, tt.forcePathStyle)
			if err != nil {
				t.Fatalf("buildURL: %v", err)
			}
			if u.Host != tt.wantHost {
				t.Errorf("host: got %s, want %s", u.Host, tt.wantHost)
			}
			if u.Path != tt.wantPath {
				t.Errorf("path: got %s, want %s", u.Path, tt.wantPath)
			}
		})
	}
}

func TestBuildURLAccelerateRejectsDottedBucket(t *testing.T) {
	base := mustBaseURL(t, "https", "s3-accelerate.amazonaws.com", "us-east-1")
	if _, err := buildURL(base, "my.bucket", "key", nil, false); err == nil {
		t.Fatal("expected accelerate endpoint to reject a dotted bucket name")
	}
}

func TestBuildURLRootOnAWSHost(t *testing.T) {
	base := mustBaseURL(t, "https", "s3.amazonaws.com", "eu-west-1")
	u, err := buildURL(base, "", "", nil, false)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	if u.Host != "s3.eu-west-1.amazonaws.com" {
		t.Errorf("root URL host: got %s", u.Host)
	}
}

func TestBuildURLRootOnFIPSHostUnchanged(t *testing.T) {
	base := mustBaseURL(t, "https", "s3-fips.us-east-1.amazonaws.com", "us-east-1")
	u, err := buildURL(base, "", "", nil, false)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	if u.Host != "s3-fips.us-east-1.amazonaws.com" {
		t.Errorf("fips root URL host must stay as configured, got %s", u.Host)
	}
}

func TestBuildURLObjectNameEncoding(t *testing.T) {
	base := mustBaseURL(t, "http", "play.min.io", "")
	u, err := buildURL(base, "bkt", "dir one/file name+x.txt", nil, true)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	if u.Path != "/bkt/dir one/file name+x.txt" {
		t.Errorf("decoded path: got %q", u.Path)
	}
	if got := u.EscapedPath(); got != "/bkt/dir%20one/file%20name%2Bx.txt" {
		t.Errorf("escaped path: got %q", got)
	}
}

func TestBuildURLLocationQueryForcesPathStyle(t *testing.T) {
	base := mustBaseURL(t, "https", "s3.amazonaws.com", "us-east-1")
	q := url.Values{}
	q.Set("location", "")
	u, err := buildURL(base, "mybucket", "", q, false)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	if u.Host != "s3.us-east-1.amazonaws.com" || u.Path != "/mybucket" {
		t.Errorf("location query should force path style: host=%s path=%s", u.Host, u.Path)
	}
}

func TestBuildURLPlainPutKeepsVirtualStyle(t *testing.T) {
	// A single-shot object PUT carries no query; that alone must not be
	// mistaken for bucket creation and demoted to path style.
	base := mustBaseURL(t, "https", "s3.amazonaws.com", "us-east-1")
	u, err := buildURL(base, "mybucket", "obj", nil, false)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	if u.Host != "mybucket.s3.us-east-1.amazonaws.com" || u.Path != "/obj" {
		t.Errorf("object PUT should stay virtual style: host=%s path=%s", u.Host, u.Path)
	}
}
