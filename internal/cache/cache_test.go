package cache

import (
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	c := New(true)
	etag := c.Set("k", []byte("v"), time.Minute)

	data, gotETag, ok := c.Get("k")
	if !ok {
		t.Fatal("entry not found")
	}
	if string(data) != "v" {
		t.Errorf("data: got %q", data)
	}
	if gotETag != etag {
		t.Errorf("etag mismatch: %q != %q", gotETag, etag)
	}
}

func TestExpiredEntryMisses(t *testing.T) {
	c := New(true)
	c.Set("k", []byte("v"), -time.Second)
	if _, _, ok := c.Get("k"); ok {
		t.Error("expired entry returned")
	}
}

func TestDisabledCacheIsNoOp(t *testing.T) {
	c := New(false)
	if etag := c.Set("k", []byte("v"), time.Minute); etag == "" {
		t.Error("disabled cache should still compute etags")
	}
	if _, _, ok := c.Get("k"); ok {
		t.Error("disabled cache returned a hit")
	}
}

func TestDeletePrefix(t *testing.T) {
	c := New(true)
	c.Set("occ:a:events", []byte("1"), time.Minute)
	c.Set("occ:a:presence", []byte("2"), time.Minute)
	c.Set("occ:b:events", []byte("3"), time.Minute)

	c.DeletePrefix("occ:a")

	if _, _, ok := c.Get("occ:a:events"); ok {
		t.Error("occ:a:events survived prefix delete")
	}
	if _, _, ok := c.Get("occ:a:presence"); ok {
		t.Error("occ:a:presence survived prefix delete")
	}
	if _, _, ok := c.Get("occ:b:events"); !ok {
		t.Error("occ:b:events dropped by unrelated prefix delete")
	}
}

func TestCheckETagMatch(t *testing.T) {
	etag := ComputeETag([]byte("body"))
	if !CheckETagMatch(etag, etag) {
		t.Error("exact match rejected")
	}
	if !CheckETagMatch("*", etag) {
		t.Error("wildcard rejected")
	}
	if CheckETagMatch("", etag) {
		t.Error("empty header matched")
	}
	if CheckETagMatch(`W/"other"`, etag) {
		t.Error("different etag matched")
	}
}
