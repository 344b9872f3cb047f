package s3utils

import "testing"

func TestOptimalPartInfoBoundaries(t *testing.T) {
	cases := []struct {
		name       string
		size       int64
		part       uint64
		wantCount  int
		wantErr    bool
		checkCount bool
	}{
		{"zero size single put", 0, 0, 1, false, true},
		{"small object default part size", 5 * 1024 * 1024, 0, 1, false, true},
		{"one byte over 64MiB at 64MiB parts", 64*1024*1024 + 1, 64 * 1024 * 1024, 2, false, true},
		{"unknown size requires part size", -1, 0, 0, true, false},
		{"negative size other than -1 rejected", -2, 5 * 1024 * 1024, 0, true, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			count, size, _, err := OptimalPartInfo(c.size, c.part)
			if (err != nil) != c.wantErr {
				t.Fatalf("err=%v, wantErr=%v", err, c.wantErr)
			}
			if err != nil {
				return
			}
			if c.checkCount && count != c.wantCount {
				t.Errorf("count=%d want=%d", count, c.wantCount)
			}
			if size < MinPartSize && c.size > MinPartSize {
				t.Errorf("part size %d below minimum", size)
			}
		})
	}
}

func TestOptimalPartInfoTooManyParts(t *testing.T) {
	// 10000 parts * 5MiB is the largest representable object at minimum
	// part size; one byte more must still fit because part size grows,
	// so force failure by also pinning a tiny part size.
	_, _, _, err := OptimalPartInfo(int64(MaxPartsCount)*MinPartSize+1, MinPartSize)
	if err == nil {
		t.Fatalf("expected error when part count would exceed %d", MaxPartsCount)
	}
}
